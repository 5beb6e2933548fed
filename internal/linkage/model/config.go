package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MatchConfig — проверенная конфигурация матчинга и переноса.
// Загрузка и дефолты — в ParseMatchConfig; дальше по коду значения валидны.
type MatchConfig struct {
	Rules           []FieldRule  `json:"rules"`
	MinScore        float64      `json:"min_score"`
	AutoAcceptScore float64      `json:"auto_accept_score"`
	TopK            int          `json:"top_k"`
	AmbiguityDelta  float64      `json:"ambiguity_delta"`
	Blocker         Blocker      `json:"blocker"`
	Transfer        TransferSpec `json:"transfer"`
}

// Сырые структуры: указатели там, где «не задано» != нулевое значение.
type rawRule struct {
	SourceField     string   `json:"source_field" yaml:"source_field"`
	TargetField     string   `json:"target_field" yaml:"target_field"`
	Weight          *float64 `json:"weight" yaml:"weight"`
	Method          string   `json:"method" yaml:"method"`
	Normalize       *bool    `json:"normalize" yaml:"normalize"`
	StripDiacritics bool     `json:"strip_diacritics" yaml:"strip_diacritics"`
}

type rawConcat struct {
	TargetField      string         `json:"target_field" yaml:"target_field"`
	Sources          []ConcatSource `json:"sources" yaml:"sources"`
	Separator        *string        `json:"separator" yaml:"separator"`
	SkipEmpty        *bool          `json:"skip_empty" yaml:"skip_empty"`
	OverwriteMode    string         `json:"overwrite_mode" yaml:"overwrite_mode"`
	JoinWithExisting *string        `json:"join_with_existing" yaml:"join_with_existing"`
}

type rawTransfer struct {
	Fields          []TransferField `json:"fields" yaml:"fields"`
	OverwriteMode   string          `json:"overwrite_mode" yaml:"overwrite_mode"`
	CreateMissing   *bool           `json:"create_missing" yaml:"create_missing"`
	CollisionSuffix *string         `json:"collision_suffix" yaml:"collision_suffix"`
	Concat          []rawConcat     `json:"concat" yaml:"concat"`
}

type rawConfig struct {
	Rules           []rawRule   `json:"rules" yaml:"rules"`
	MinScore        *float64    `json:"min_score" yaml:"min_score"`
	AutoAcceptScore *float64    `json:"auto_accept_score" yaml:"auto_accept_score"`
	TopK            *int        `json:"top_k" yaml:"top_k"`
	AmbiguityDelta  *float64    `json:"ambiguity_delta" yaml:"ambiguity_delta"`
	Blocker         string      `json:"blocker" yaml:"blocker"`
	Transfer        rawTransfer `json:"transfer" yaml:"transfer"`
}

// ParseMatchConfig разбирает конфиг из JSON (основной формат) или YAML
// (запасной, для рукописных конфигов), подставляет дефолты и валидирует.
func ParseMatchConfig(data []byte) (MatchConfig, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
			return MatchConfig{}, fmt.Errorf("config is neither valid JSON (%v) nor YAML: %w", err, yerr)
		}
	}
	cfg := fromRaw(raw)
	if err := cfg.Validate(); err != nil {
		return MatchConfig{}, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) MatchConfig {
	cfg := MatchConfig{
		MinScore:        floatOr(raw.MinScore, 0),
		AutoAcceptScore: floatOr(raw.AutoAcceptScore, 95),
		TopK:            intOr(raw.TopK, 5),
		AmbiguityDelta:  floatOr(raw.AmbiguityDelta, 5),
		Blocker:         Blocker(strOrDef(raw.Blocker, string(BlockerYearOrInitial))),
	}
	for _, r := range raw.Rules {
		cfg.Rules = append(cfg.Rules, FieldRule{
			SourceField:     r.SourceField,
			TargetField:     r.TargetField,
			Weight:          floatOr(r.Weight, 1),
			Method:          Method(strOrDef(r.Method, string(MethodFuzzyRatio))),
			Normalize:       boolOr(r.Normalize, true),
			StripDiacritics: r.StripDiacritics,
		})
	}
	cfg.Transfer = TransferSpec{
		Fields:          raw.Transfer.Fields,
		OverwriteMode:   OverwriteMode(strOrDef(raw.Transfer.OverwriteMode, string(OverwriteIfEmpty))),
		CreateMissing:   boolOr(raw.Transfer.CreateMissing, true),
		CollisionSuffix: strPtrOr(raw.Transfer.CollisionSuffix, "_src"),
	}
	for _, c := range raw.Transfer.Concat {
		cfg.Transfer.Concat = append(cfg.Transfer.Concat, ConcatTransfer{
			TargetField:      c.TargetField,
			Sources:          c.Sources,
			Separator:        strPtrOr(c.Separator, " "),
			SkipEmpty:        boolOr(c.SkipEmpty, true),
			OverwriteMode:    ConcatMode(strOrDef(c.OverwriteMode, string(ConcatIfEmpty))),
			JoinWithExisting: c.JoinWithExisting,
		})
	}
	return cfg
}

// Validate отлавливает структурные ошибки конфига до запуска матчинга.
// Ошибки данных (пустые ячейки, отсутствующие колонки) ошибками не считаются.
func (c *MatchConfig) Validate() error {
	for i, r := range c.Rules {
		if r.SourceField == "" || r.TargetField == "" {
			return fmt.Errorf("rule %d: source_field and target_field are required", i)
		}
		if r.Weight <= 0 {
			return fmt.Errorf("rule %d: weight must be > 0 (got %g)", i, r.Weight)
		}
		if !r.Method.Valid() {
			return fmt.Errorf("rule %d: invalid method %q", i, r.Method)
		}
	}
	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("min_score must be in [0,100] (got %g)", c.MinScore)
	}
	if c.AutoAcceptScore < 0 || c.AutoAcceptScore > 100 {
		return fmt.Errorf("auto_accept_score must be in [0,100] (got %g)", c.AutoAcceptScore)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1 (got %d)", c.TopK)
	}
	if c.AmbiguityDelta < 0 {
		return fmt.Errorf("ambiguity_delta must be >= 0 (got %g)", c.AmbiguityDelta)
	}
	if !c.Blocker.Valid() {
		return fmt.Errorf("invalid blocker %q", c.Blocker)
	}
	if !c.Transfer.OverwriteMode.Valid() {
		return fmt.Errorf("invalid overwrite_mode %q", c.Transfer.OverwriteMode)
	}
	for i, ct := range c.Transfer.Concat {
		if ct.TargetField == "" {
			return fmt.Errorf("concat %d: target_field is required", i)
		}
		if len(ct.Sources) == 0 {
			return fmt.Errorf("concat %d: at least one source is required", i)
		}
		if !ct.OverwriteMode.Valid() {
			return fmt.Errorf("concat %d: invalid overwrite_mode %q", i, ct.OverwriteMode)
		}
	}
	return nil
}

func floatOr(p *float64, def float64) float64 {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func strOrDef(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func strPtrOr(p *string, def string) string {
	if p != nil {
		return *p
	}
	return def
}
