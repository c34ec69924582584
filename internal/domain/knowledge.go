package domain

// KeyPrefix namespaces every Redis key written by the service.
const KeyPrefix = "phytodex:"

// KnowledgeConfig holds internal knowledge-base vectorization settings, not exposed to clients.
type KnowledgeConfig struct {
	IndexName           string
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	HNSWM               int
	HNSWEFConstruct     int
	DocumentInstruction string
	QueryInstruction    string
	ChunkSize           int
	ChunkOverlap        int
	MinChunkSize        int
	MaxBatchSize        int
	TopK                int
	MaxTopK             int
}

// DefaultKnowledgeConfig returns the default configuration tuned for embed-english-v3.0.
func DefaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		IndexName:           KeyPrefix + "passages",
		Model:               "embed-english-v3.0",
		Dimensions:          1024,
		DistanceMetric:      "cosine",
		Algorithm:           "hnsw",
		HNSWM:               32,
		HNSWEFConstruct:     400,
		DocumentInstruction: "search_document: ",
		QueryInstruction:    "search_query: ",
		ChunkSize:           1000,
		ChunkOverlap:        150,
		MinChunkSize:        80,
		MaxBatchSize:        256,
		TopK:                3,
		MaxTopK:             20,
	}
}
