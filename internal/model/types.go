package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolution run and how far it got.
type RunRecord struct {
	VersionedRecord
	ID                   string    `json:"id"`
	CreatedAt            time.Time `json:"created_at"`
	Seed                 int64     `json:"seed"`
	PopulationSize       int       `json:"population_size"`
	Generations          int       `json:"generations"`
	CompletedGenerations int       `json:"completed_generations"`
	Workers              int       `json:"workers"`
	DT                   float64   `json:"dt"`
	TimeCeiling          float64   `json:"time_ceiling"`
	Architecture         []int     `json:"architecture"`
	Selection            string    `json:"selection"`
	Mutation             string    `json:"mutation"`
	BestFitness          float64   `json:"best_fitness"`
}

// GenerationRecord is the fitness summary of one simulated iteration.
type GenerationRecord struct {
	VersionedRecord
	RunID         string  `json:"run_id"`
	Generation    int     `json:"generation"`
	BestFitness   float64 `json:"best_fitness"`
	MeanFitness   float64 `json:"mean_fitness"`
	MedianFitness float64 `json:"median_fitness"`
	MinFitness    float64 `json:"min_fitness"`
	StdFitness    float64 `json:"std_fitness"`
	Alive         int     `json:"alive"`
	SimTime       float64 `json:"sim_time"`
	Ticks         int     `json:"ticks"`
	StopReason    string  `json:"stop_reason"`
}

// ChampionRecord keeps the best controller a run produced.
type ChampionRecord struct {
	VersionedRecord
	RunID        string    `json:"run_id"`
	Generation   int       `json:"generation"`
	Fitness      float64   `json:"fitness"`
	Architecture []int     `json:"architecture"`
	DNA          []float32 `json:"dna"`
}
