package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/uacr-monitor/internal/domain"
)

// Result holds the snapshots that decoded cleanly and a failure for every
// record that did not.
type Result struct {
	Patients []domain.PatientSnapshot
	Failures []*domain.EvaluationError
}

// rawDocument defers per-patient decoding so one bad record does not reject
// the document.
type rawDocument struct {
	Patients []json.RawMessage `json:"patients"`
}

// Decode reads a {"patients": [...]} document. Malformed JSON at the document
// level is an error; a record that cannot be decoded becomes a failure.
func Decode(r io.Reader) (*Result, error) {
	var doc rawDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode patient document: %w", err)
	}
	if doc.Patients == nil {
		return nil, errors.New("decode patient document: missing \"patients\" array")
	}

	result := &Result{
		Patients: make([]domain.PatientSnapshot, 0, len(doc.Patients)),
		Failures: []*domain.EvaluationError{},
	}
	for i, raw := range doc.Patients {
		snap, err := DecodePatient(raw)
		if err != nil {
			result.Failures = append(result.Failures, asFailure(i, raw, err))
			continue
		}
		result.Patients = append(result.Patients, snap)
	}
	return result, nil
}

// DecodePatient decodes a single wire record.
func DecodePatient(raw []byte) (domain.PatientSnapshot, error) {
	var p Patient
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return domain.PatientSnapshot{}, err
	}
	return p.Snapshot()
}

// LoadFile decodes the patient document at path.
func LoadFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open patient document: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func asFailure(index int, raw json.RawMessage, err error) *domain.EvaluationError {
	var evalErr *domain.EvaluationError
	if errors.As(err, &evalErr) {
		return evalErr
	}

	// Recover the identifier if the record is otherwise unreadable.
	var probe struct {
		PatientID string `json:"patientId"`
	}
	_ = json.Unmarshal(raw, &probe)
	id := probe.PatientID
	if id == "" {
		id = fmt.Sprintf("patients[%d]", index)
	}

	field := ""
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field = typeErr.Field
	}
	return domain.NewEvaluationError(id, field, err)
}
