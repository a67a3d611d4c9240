package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/armsync"
)

func TestWriteBatchFile(t *testing.T) {
	q := arm.NewQuestionArm("l1", "q1")
	q.CreatedAt, q.UpdatedAt = 5, 5
	batch := armsync.NewBatch("l1", 0, 0, armsync.Delta{QuestionArms: []*arm.QuestionArm{q}})

	path := filepath.Join(t.TempDir(), "batch.json")
	if err := writeBatchFile(path, batch); err != nil {
		t.Fatalf("writeBatchFile: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	got, err := armsync.DecodeBatch(f)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if got.BatchID != batch.BatchID || len(got.Records) != 1 {
		t.Errorf("got batch %s with %d records, want %s with 1", got.BatchID, len(got.Records), batch.BatchID)
	}
}

func TestWriteBatchFileReportsFailures(t *testing.T) {
	batch := armsync.NewBatch("l1", 0, 0, armsync.Delta{})

	missing := filepath.Join(t.TempDir(), "no-such-dir", "batch.json")
	if err := writeBatchFile(missing, batch); err == nil {
		t.Error("expected an error for a missing directory")
	}

	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	if err := writeBatchFile("/dev/full", batch); err == nil {
		t.Error("expected an error when the device is full")
	}
}
