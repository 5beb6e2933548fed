package model

// Method — способ сравнения значений одного правила. Закрытый набор,
// switch по нему должен быть исчерпывающим.
type Method string

const (
	MethodExact           Method = "exact"
	MethodNormalizedExact Method = "normalized_exact"
	MethodFuzzyRatio      Method = "fuzzy_ratio"
	MethodTokenSet        Method = "token_set"
	MethodContains        Method = "contains"
)

func (m Method) Valid() bool {
	switch m {
	case MethodExact, MethodNormalizedExact, MethodFuzzyRatio, MethodTokenSet, MethodContains:
		return true
	}
	return false
}

// Status — состояние результата матчинга для одной целевой строки.
type Status string

const (
	StatusAuto     Status = "auto"     // принят автоматически по порогу
	StatusPending  Status = "pending"  // ждёт решения пользователя
	StatusAccepted Status = "accepted" // принят пользователем
	StatusRejected Status = "rejected" // без соответствия
	StatusSkipped  Status = "skipped"  // отложен пользователем
)

type Blocker string

const (
	BlockerYearOrInitial Blocker = "year_or_initial"
	BlockerNone          Blocker = "none"
)

func (b Blocker) Valid() bool { return b == BlockerYearOrInitial || b == BlockerNone }

type OverwriteMode string

const (
	OverwriteNever   OverwriteMode = "never"
	OverwriteIfEmpty OverwriteMode = "if_empty"
	OverwriteAlways  OverwriteMode = "always"
)

func (m OverwriteMode) Valid() bool {
	return m == OverwriteNever || m == OverwriteIfEmpty || m == OverwriteAlways
}

// ConcatMode — политика записи для склейки нескольких колонок.
type ConcatMode string

const (
	ConcatIfEmpty ConcatMode = "if_empty"
	ConcatReplace ConcatMode = "replace"
	ConcatAppend  ConcatMode = "append"
	ConcatPrepend ConcatMode = "prepend"
)

func (m ConcatMode) Valid() bool {
	return m == ConcatIfEmpty || m == ConcatReplace || m == ConcatAppend || m == ConcatPrepend
}

// FieldRule — правило сравнения пары колонок source/target.
// Применяется только если обе колонки существуют в своих таблицах.
type FieldRule struct {
	SourceField     string  `json:"source_field" yaml:"source_field"`
	TargetField     string  `json:"target_field" yaml:"target_field"`
	Weight          float64 `json:"weight" yaml:"weight"`
	Method          Method  `json:"method" yaml:"method"`
	Normalize       bool    `json:"normalize" yaml:"normalize"`
	StripDiacritics bool    `json:"strip_diacritics" yaml:"strip_diacritics"`
}

// Key — идентификатор правила в карте пофельдовых скоров.
func (r FieldRule) Key() string { return r.SourceField + ":" + r.TargetField }

// MatchCandidate — один кандидат из source для целевой строки.
// Создаётся один раз, дальше не меняется.
type MatchCandidate struct {
	SourceRowID    int                `json:"source_row_id"`
	Score          float64            `json:"score"`
	PerFieldScores map[string]float64 `json:"per_field_scores,omitempty"`
}

// MatchResult — результат по одной целевой строке. После создания linker'ом
// меняются только Status / ChosenSourceRowID / Explanation — через Apply*.
type MatchResult struct {
	TargetRowID       int              `json:"target_row_id"`
	Candidates        []MatchCandidate `json:"candidates"` // убыв. по score, ties — возр. source_row_id, длина <= top_k
	BestScore         float64          `json:"best_score"`
	IsAmbiguous       bool             `json:"is_ambiguous"`
	Status            Status           `json:"status"`
	ChosenSourceRowID *int             `json:"chosen_source_row_id"`
	Explanation       string           `json:"explanation"`
}

// TransferField — одна переносимая колонка source (с опц. переименованием).
type TransferField struct {
	Source string `json:"source" yaml:"source"`
	Rename string `json:"rename,omitempty" yaml:"rename"`
}

// ConcatSource — часть склейки: колонка source + опц. префикс.
type ConcatSource struct {
	Field  string `json:"field" yaml:"field"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix"`
}

// ConcatTransfer — склейка нескольких колонок source в одну колонку target.
type ConcatTransfer struct {
	TargetField      string         `json:"target_field" yaml:"target_field"`
	Sources          []ConcatSource `json:"sources" yaml:"sources"`
	Separator        string         `json:"separator" yaml:"separator"`
	SkipEmpty        bool           `json:"skip_empty" yaml:"skip_empty"`
	OverwriteMode    ConcatMode     `json:"overwrite_mode" yaml:"overwrite_mode"`
	JoinWithExisting *string        `json:"join_with_existing,omitempty" yaml:"join_with_existing"` // nil → Separator
}

// TransferSpec — полная спецификация переноса колонок.
type TransferSpec struct {
	Fields          []TransferField  `json:"fields" yaml:"fields"`
	OverwriteMode   OverwriteMode    `json:"overwrite_mode" yaml:"overwrite_mode"`
	CreateMissing   bool             `json:"create_missing" yaml:"create_missing"`
	CollisionSuffix string           `json:"collision_suffix" yaml:"collision_suffix"`
	Concat          []ConcatTransfer `json:"concat,omitempty" yaml:"concat"`
}
