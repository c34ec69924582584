package passage

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/phytodex/internal/db"
	"github.com/kailas-cloud/phytodex/internal/domain"
)

// Hash field names. The vector field name is fixed because KNN queries
// reference it as @vector.
const (
	fieldContent = "content"
	fieldVector  = "vector"
	fieldTitle   = "title"
	fieldSource  = "source"
	fieldCrop    = "crop"
	fieldChunk   = "chunk"
)

// returnFields lists the hash fields fetched by KNN searches.
// The vector itself is never returned to callers.
var returnFields = []string{fieldContent, fieldTitle, fieldSource, fieldCrop, fieldChunk}

// passageToHash flattens a passage and its embedding into hash fields.
func passageToHash(p domain.Passage, vector []float32) map[string]string {
	return map[string]string{
		fieldContent: p.Content,
		fieldVector:  vectorToBytes(vector),
		fieldTitle:   p.Title,
		fieldSource:  p.Source,
		fieldCrop:    p.Crop,
		fieldChunk:   strconv.Itoa(p.Chunk),
	}
}

// passageFromEntry reconstructs a passage from a search hit.
func passageFromEntry(entry db.SearchEntry, keyPrefix string) domain.Passage {
	p := domain.Passage{
		ID:      strings.TrimPrefix(entry.Key, keyPrefix),
		Content: entry.Fields[fieldContent],
		Title:   entry.Fields[fieldTitle],
		Source:  entry.Fields[fieldSource],
		Crop:    entry.Fields[fieldCrop],
		Score:   entry.Score,
	}
	if n, err := strconv.Atoi(entry.Fields[fieldChunk]); err == nil {
		p.Chunk = n
	}
	return p
}

// vectorToBytes serializes []float32 to a little-endian binary string
// as expected by FT vector fields on hashes.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// metricToDB maps a config distance metric to the db constant.
func metricToDB(metric string) db.DistanceMetric {
	switch strings.ToLower(metric) {
	case "l2":
		return db.DistanceL2
	case "ip":
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}

// algoToDB maps a config vector algorithm to the db constant.
func algoToDB(algo string) db.VectorAlgorithm {
	if strings.EqualFold(algo, "flat") {
		return db.VectorFlat
	}
	return db.VectorHNSW
}
