package neat

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Config stores the configuration parameters for the NEAT algorithm.
// The file layout is the one neat-python uses, so existing
// config-feedforward files load unchanged.
type Config struct {
	Neat         NeatConfig
	Genome       GenomeConfig
	Reproduction ReproductionConfig
	SpeciesSet   SpeciesSetConfig
	Stagnation   StagnationConfig
}

// NeatConfig is the [NEAT] section.
type NeatConfig struct {
	PopSize              int     `ini:"pop_size"`
	FitnessCriterion     string  `ini:"fitness_criterion"`
	FitnessThreshold     float64 `ini:"fitness_threshold"`
	ResetOnExtinction    bool    `ini:"reset_on_extinction"`
	NoFitnessTermination bool    `ini:"no_fitness_termination"`
}

// GenomeConfig is the [DefaultGenome] section plus the derived node keys.
type GenomeConfig struct {
	NumInputs                        int     `ini:"num_inputs"`
	NumOutputs                       int     `ini:"num_outputs"`
	NumHidden                        int     `ini:"num_hidden"`
	FeedForward                      bool    `ini:"feed_forward"`
	CompatibilityDisjointCoefficient float64 `ini:"compatibility_disjoint_coefficient"`
	CompatibilityWeightCoefficient   float64 `ini:"compatibility_weight_coefficient"`
	ConnAddProb                      float64 `ini:"conn_add_prob"`
	ConnDeleteProb                   float64 `ini:"conn_delete_prob"`
	NodeAddProb                      float64 `ini:"node_add_prob"`
	NodeDeleteProb                   float64 `ini:"node_delete_prob"`
	SingleStructuralMutation         bool    `ini:"single_structural_mutation"`
	InitialConnection                string  `ini:"initial_connection"`

	BiasInitMean    float64 `ini:"bias_init_mean"`
	BiasInitStdev   float64 `ini:"bias_init_stdev"`
	BiasInitType    string  `ini:"bias_init_type"`
	BiasReplaceRate float64 `ini:"bias_replace_rate"`
	BiasMutateRate  float64 `ini:"bias_mutate_rate"`
	BiasMutatePower float64 `ini:"bias_mutate_power"`
	BiasMaxValue    float64 `ini:"bias_max_value"`
	BiasMinValue    float64 `ini:"bias_min_value"`

	ResponseInitMean    float64 `ini:"response_init_mean"`
	ResponseInitStdev   float64 `ini:"response_init_stdev"`
	ResponseInitType    string  `ini:"response_init_type"`
	ResponseReplaceRate float64 `ini:"response_replace_rate"`
	ResponseMutateRate  float64 `ini:"response_mutate_rate"`
	ResponseMutatePower float64 `ini:"response_mutate_power"`
	ResponseMaxValue    float64 `ini:"response_max_value"`
	ResponseMinValue    float64 `ini:"response_min_value"`

	ActivationDefault    string   `ini:"activation_default"`
	ActivationOptions    []string `ini:"activation_options" delim:" "`
	ActivationMutateRate float64  `ini:"activation_mutate_rate"`

	AggregationDefault    string   `ini:"aggregation_default"`
	AggregationOptions    []string `ini:"aggregation_options" delim:" "`
	AggregationMutateRate float64  `ini:"aggregation_mutate_rate"`

	WeightInitMean    float64 `ini:"weight_init_mean"`
	WeightInitStdev   float64 `ini:"weight_init_stdev"`
	WeightInitType    string  `ini:"weight_init_type"`
	WeightReplaceRate float64 `ini:"weight_replace_rate"`
	WeightMutateRate  float64 `ini:"weight_mutate_rate"`
	WeightMutatePower float64 `ini:"weight_mutate_power"`
	WeightMaxValue    float64 `ini:"weight_max_value"`
	WeightMinValue    float64 `ini:"weight_min_value"`

	EnabledDefault        string  `ini:"enabled_default"`
	EnabledMutateRate     float64 `ini:"enabled_mutate_rate"`
	EnabledRateToTrueAdd  float64 `ini:"enabled_rate_to_true_add"`
	EnabledRateToFalseAdd float64 `ini:"enabled_rate_to_false_add"`

	// Derived after loading.
	InputKeys    []int `ini:"-"`
	OutputKeys   []int `ini:"-"`
	NodeKeyIndex int   `ini:"-"`
}

// ReproductionConfig is the [DefaultReproduction] section.
type ReproductionConfig struct {
	Elitism           int     `ini:"elitism"`
	SurvivalThreshold float64 `ini:"survival_threshold"`
	MinSpeciesSize    int     `ini:"min_species_size"`
}

// SpeciesSetConfig is the [DefaultSpeciesSet] section.
type SpeciesSetConfig struct {
	CompatibilityThreshold float64 `ini:"compatibility_threshold"`
}

// StagnationConfig is the [DefaultStagnation] section.
type StagnationConfig struct {
	SpeciesFitnessFunc string `ini:"species_fitness_func"`
	MaxStagnation      int    `ini:"max_stagnation"`
	SpeciesElitism     int    `ini:"species_elitism"`
}

var validInitialConnections = map[string]bool{
	"unconnected": true, "fs_neat_nohidden": true, "fs_neat": true, "fs_neat_hidden": true,
	"full_nodirect": true, "full": true, "full_direct": true,
	"partial_nodirect": true, "partial": true, "partial_direct": true,
}

// LoadConfig loads a neat-python style INI file.
func LoadConfig(filePath string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file '%s': %w", filePath, err)
	}
	return parseConfig(f)
}

// ParseConfig reads a configuration from in-memory INI data.
func ParseConfig(data []byte) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return parseConfig(f)
}

func parseConfig(f *ini.File) (*Config, error) {
	config := &Config{}
	sections := []struct {
		name string
		dst  any
	}{
		{"NEAT", &config.Neat},
		{"DefaultGenome", &config.Genome},
		{"DefaultReproduction", &config.Reproduction},
		{"DefaultSpeciesSet", &config.SpeciesSet},
		{"DefaultStagnation", &config.Stagnation},
	}
	for _, s := range sections {
		if err := f.Section(s.name).MapTo(s.dst); err != nil {
			return nil, fmt.Errorf("failed to map [%s] section: %w", s.name, err)
		}
	}

	// neat-python writes booleans as True/False; re-read them through the
	// key API, which accepts every spelling.
	readBool(f.Section("NEAT"), "no_fitness_termination", &config.Neat.NoFitnessTermination)
	readBool(f.Section("NEAT"), "reset_on_extinction", &config.Neat.ResetOnExtinction)
	readBool(f.Section("DefaultGenome"), "feed_forward", &config.Genome.FeedForward)
	readBool(f.Section("DefaultGenome"), "single_structural_mutation", &config.Genome.SingleStructuralMutation)

	config.applyDefaults()
	config.Genome.deriveKeys()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func readBool(section *ini.Section, key string, dst *bool) {
	k, err := section.GetKey(key)
	if err != nil {
		return
	}
	if v, err := k.Bool(); err == nil {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	g := &c.Genome
	for _, s := range []*string{
		&g.BiasInitType, &g.ResponseInitType, &g.WeightInitType,
		&g.ActivationDefault, &g.AggregationDefault, &g.EnabledDefault,
		&g.InitialConnection, &c.Neat.FitnessCriterion, &c.Stagnation.SpeciesFitnessFunc,
	} {
		*s = cleanIniString(*s)
	}
	for i, opt := range g.ActivationOptions {
		g.ActivationOptions[i] = strings.TrimSpace(opt)
	}
	for i, opt := range g.AggregationOptions {
		g.AggregationOptions[i] = strings.TrimSpace(opt)
	}

	setDefault(&g.BiasInitType, "gaussian")
	setDefault(&g.ResponseInitType, "gaussian")
	setDefault(&g.WeightInitType, "gaussian")
	setDefault(&g.ActivationDefault, "random")
	setDefault(&g.AggregationDefault, "random")
	setDefault(&g.EnabledDefault, "True")
	setDefault(&g.InitialConnection, "unconnected")
	setDefault(&c.Stagnation.SpeciesFitnessFunc, "mean")

	if c.Reproduction.MinSpeciesSize == 0 {
		c.Reproduction.MinSpeciesSize = 1
	}
	if c.Reproduction.SurvivalThreshold == 0 {
		c.Reproduction.SurvivalThreshold = 0.2
	}
	if c.Stagnation.MaxStagnation == 0 {
		c.Stagnation.MaxStagnation = 15
	}
}

func setDefault(s *string, v string) {
	if *s == "" {
		*s = v
	}
}

// deriveKeys assigns input keys -1..-n, output keys 0..m-1 and starts hidden
// node numbering right after the outputs.
func (gc *GenomeConfig) deriveKeys() {
	gc.InputKeys = make([]int, gc.NumInputs)
	for i := range gc.InputKeys {
		gc.InputKeys[i] = -(i + 1)
	}
	gc.OutputKeys = make([]int, gc.NumOutputs)
	for i := range gc.OutputKeys {
		gc.OutputKeys[i] = i
	}
	gc.NodeKeyIndex = gc.NumOutputs
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	g := c.Genome
	probs := []struct {
		name string
		p    float64
	}{
		{"conn_add_prob", g.ConnAddProb},
		{"conn_delete_prob", g.ConnDeleteProb},
		{"node_add_prob", g.NodeAddProb},
		{"node_delete_prob", g.NodeDeleteProb},
	}
	for _, pr := range probs {
		if pr.p < 0 || pr.p > 1 {
			return fmt.Errorf("config error: %s must be between 0 and 1", pr.name)
		}
	}

	switch {
	case c.Neat.PopSize <= 0:
		return errors.New("config error: pop_size must be positive")
	case g.NumInputs <= 0:
		return errors.New("config error: num_inputs must be positive")
	case g.NumOutputs <= 0:
		return errors.New("config error: num_outputs must be positive")
	case len(g.ActivationOptions) == 0:
		return errors.New("config error: activation_options must be specified")
	case len(g.AggregationOptions) == 0:
		return errors.New("config error: aggregation_options must be specified")
	case g.CompatibilityDisjointCoefficient < 0:
		return errors.New("config error: compatibility_disjoint_coefficient cannot be negative")
	case g.CompatibilityWeightCoefficient < 0:
		return errors.New("config error: compatibility_weight_coefficient cannot be negative")
	case g.BiasMaxValue < g.BiasMinValue:
		return errors.New("config error: bias_max_value cannot be less than bias_min_value")
	case g.ResponseMaxValue < g.ResponseMinValue:
		return errors.New("config error: response_max_value cannot be less than response_min_value")
	case g.WeightMaxValue < g.WeightMinValue:
		return errors.New("config error: weight_max_value cannot be less than weight_min_value")
	case c.Reproduction.SurvivalThreshold < 0 || c.Reproduction.SurvivalThreshold > 1:
		return errors.New("config error: survival_threshold must be between 0 and 1")
	case c.Reproduction.MinSpeciesSize <= 0:
		return errors.New("config error: min_species_size must be positive")
	case c.SpeciesSet.CompatibilityThreshold < 0:
		return errors.New("config error: compatibility_threshold cannot be negative")
	case c.Stagnation.MaxStagnation <= 0:
		return errors.New("config error: max_stagnation must be positive")
	}

	for _, it := range []string{g.BiasInitType, g.ResponseInitType, g.WeightInitType} {
		switch strings.ToLower(it) {
		case "gaussian", "normal", "uniform":
		default:
			return fmt.Errorf("config error: unknown init_type '%s'", it)
		}
	}
	if !validStringDefault(g.ActivationDefault, g.ActivationOptions) {
		return fmt.Errorf("config error: activation_default '%s' not in activation_options", g.ActivationDefault)
	}
	if !validStringDefault(g.AggregationDefault, g.AggregationOptions) {
		return fmt.Errorf("config error: aggregation_default '%s' not in aggregation_options", g.AggregationDefault)
	}

	for _, name := range g.ActivationOptions {
		if _, err := GetActivation(name); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}
	for _, name := range g.AggregationOptions {
		if _, err := GetAggregation(name); err != nil {
			return fmt.Errorf("config error: %w", err)
		}
	}

	switch strings.ToLower(c.Neat.FitnessCriterion) {
	case "max", "min", "mean":
	default:
		return fmt.Errorf("config error: invalid fitness_criterion '%s', must be one of 'max', 'min', 'mean'", c.Neat.FitnessCriterion)
	}

	if base := strings.Fields(g.InitialConnection)[0]; !validInitialConnections[base] {
		return fmt.Errorf("config error: invalid initial_connection type '%s'", base)
	}
	if _, ok := StatFunctions[strings.ToLower(c.Stagnation.SpeciesFitnessFunc)]; !ok {
		return fmt.Errorf("config error: invalid species_fitness_func '%s'", c.Stagnation.SpeciesFitnessFunc)
	}
	return nil
}

func validStringDefault(def string, options []string) bool {
	switch strings.ToLower(def) {
	case "random", "none":
		return true
	}
	for _, opt := range options {
		if opt == def {
			return true
		}
	}
	return false
}

// GetNewNodeKey hands out the next hidden node key.
func (gc *GenomeConfig) GetNewNodeKey() int {
	key := gc.NodeKeyIndex
	gc.NodeKeyIndex++
	return key
}

// cleanIniString strips a trailing comment and surrounding whitespace.
func cleanIniString(s string) string {
	if idx := strings.IndexAny(s, "#;"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
