package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	spaceyapi "spacey/pkg/spacey"
)

func loadRunRequestFromConfig(path string) (spaceyapi.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return spaceyapi.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return spaceyapi.RunRequest{}, err
	}

	var req spaceyapi.RunRequest
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asFloat64(raw["dt"]); ok {
		req.DT = v
	}
	if v, ok := asFloat64(raw["time_ceiling"]); ok {
		req.TimeCeiling = v
	}
	if v, ok := asInt(raw["tick_timeout_ms"]); ok {
		req.TickTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := asBool(raw["smoke"]); ok {
		req.Smoke = v
	}
	if v, ok := asString(raw["activation"]); ok {
		req.Activation = v
	}
	if v, ok := asString(raw["selection"]); ok {
		req.Selection = v
	}
	if v, ok := asString(raw["dna_in"]); ok {
		req.DNAIn = v
	}
	if v, ok := asString(raw["dna_out"]); ok {
		req.DNAOut = v
	}

	// "mutation" is either an operator name or an object with name, rate
	// and sigma.
	switch m := raw["mutation"].(type) {
	case string:
		req.Mutation = m
	case map[string]any:
		if v, ok := asString(m["name"]); ok {
			req.Mutation = v
		}
		if v, ok := asFloat64(m["rate"]); ok {
			req.MutationRate = v
		}
		if v, ok := asFloat64(m["sigma"]); ok {
			req.MutationSigma = v
		}
	case nil:
	default:
		return spaceyapi.RunRequest{}, fmt.Errorf("mutation must be a name or an object, got %T", m)
	}
	if v, ok := asFloat64(raw["mutation_rate"]); ok {
		req.MutationRate = v
	}
	if v, ok := asFloat64(raw["mutation_sigma"]); ok {
		req.MutationSigma = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (spaceyapi.RunRequest, error) {
	if configPath == "" {
		return spaceyapi.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return spaceyapi.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func overrideFromFlags(req *spaceyapi.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "workers":
			req.Workers = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "dt":
			req.DT = v.(float64)
		case "time-ceiling":
			req.TimeCeiling = v.(float64)
		case "tick-timeout":
			req.TickTimeout = v.(time.Duration)
		case "smoke":
			req.Smoke = v.(bool)
		case "activation":
			req.Activation = v.(string)
		case "selection":
			req.Selection = v.(string)
		case "mutation":
			req.Mutation = v.(string)
		case "mutation-rate":
			req.MutationRate = v.(float64)
		case "mutation-sigma":
			req.MutationSigma = v.(float64)
		case "dna-in":
			req.DNAIn = v.(string)
		case "dna-out":
			req.DNAOut = v.(string)
		default:
			return fmt.Errorf("unsupported override flag: %s", name)
		}
	}
	return nil
}
