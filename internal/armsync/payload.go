package armsync

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"

	"github.com/abhisek/mabquiz/internal/arm"
)

// SchemaVersion is written into every batch. Batches with a different major
// version are refused.
const SchemaVersion = "v1.0.0"

//go:embed batch.schema.json
var batchSchemaJSON []byte

var (
	batchSchemaOnce sync.Once
	batchSchema     *jsonschema.Schema
	batchSchemaErr  error
)

// Batch is the wire form of a delta.
type Batch struct {
	SchemaVersion string `json:"schemaVersion"`
	BatchID       string `json:"batchId"`
	LearnerID     string `json:"learnerId"`
	// Since is the checkpoint the batch was cut from.
	Since int64 `json:"since"`
	// ServerTime is set on batches produced by Exchange; the receiver uses
	// it as its next checkpoint.
	ServerTime int64        `json:"serverTime,omitempty"`
	Records    []arm.Record `json:"records"`
}

// NewBatch wraps a delta for transport.
func NewBatch(learnerID string, since, serverTime int64, d Delta) Batch {
	return Batch{
		SchemaVersion: SchemaVersion,
		BatchID:       uuid.NewString(),
		LearnerID:     learnerID,
		Since:         since,
		ServerTime:    serverTime,
		Records:       d.Records(),
	}
}

// Delta converts the batch records back into arms.
func (b Batch) Delta() (Delta, error) {
	return DeltaFromRecords(b.Records)
}

// EncodeBatch writes b as indented JSON.
func EncodeBatch(w io.Writer, b Batch) error {
	if b.Records == nil {
		b.Records = []arm.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// DecodeBatch reads a batch, validating it against the batch JSON schema
// and checking the schema version is compatible.
func DecodeBatch(r io.Reader) (Batch, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, fmt.Errorf("read batch: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Batch{}, fmt.Errorf("invalid JSON: %w", err)
	}
	schema, err := compiledBatchSchema()
	if err != nil {
		return Batch{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return Batch{}, fmt.Errorf("batch schema validation failed: %w", err)
	}

	var b Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	if err := checkVersion(b.SchemaVersion); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func checkVersion(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid schema version %q", v)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("unsupported schema version %s (want %s.x)", v, semver.Major(SchemaVersion))
	}
	return nil
}

func compiledBatchSchema() (*jsonschema.Schema, error) {
	batchSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(batchSchemaJSON))
		if err != nil {
			batchSchemaErr = fmt.Errorf("parse batch schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://mabquiz/batch.json"
		if err := c.AddResource(url, doc); err != nil {
			batchSchemaErr = fmt.Errorf("add resource: %w", err)
			return
		}
		batchSchema, batchSchemaErr = c.Compile(url)
	})
	return batchSchema, batchSchemaErr
}
