package service

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-card-sync/internal/models"
	appErrors "github.com/noah-isme/sma-card-sync/pkg/errors"
)

var utf8BOM = []byte("\xEF\xBB\xBF")

// studentsEnvelope is the top-level response body. encoding/json matches keys
// case-insensitively, so "Data" and "DATA" are accepted too.
type studentsEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// studentPayload mirrors one student object. Pointers tell a missing field apart
// from a zero value.
type studentPayload struct {
	Name          *string `json:"name" validate:"required"`
	FullName      *string `json:"full_name" validate:"required"`
	Matriculation *string `json:"matriculation" validate:"required"`
	Email         *string `json:"email" validate:"required"`
	IDUser        *int    `json:"id_user" validate:"required"`
	Course        *string `json:"course" validate:"required"`
	Bloqueado     *int    `json:"bloqueado" validate:"required,oneof=0 1"`
}

func (p studentPayload) record() models.StudentRecord {
	return models.StudentRecord{
		DisplayName:      *p.Name,
		FullName:         *p.FullName,
		MatriculationRaw: *p.Matriculation,
		Email:            *p.Email,
		ExternalID:       *p.IDUser,
		Course:           *p.Course,
		Blocked:          *p.Bloqueado,
	}
}

// StudentParser turns the API payload into student records.
type StudentParser struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentParser constructs a StudentParser.
func NewStudentParser(validate *validator.Validate, logger *zap.Logger) *StudentParser {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentParser{validator: validate, logger: logger}
}

// Parse flattens data[][] into records in API order. A missing or non-array data key
// is only worth a warning and yields nothing. A malformed student aborts parsing with
// a JSON_DECODE_ERROR; the records decoded before it are returned with the error.
func (p *StudentParser) Parse(raw []byte) ([]models.StudentRecord, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	var envelope studentsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrJSONDecode.Code, "response body is not a JSON object")
	}

	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '[' {
		p.logger.Warn(appErrors.ErrEmptyData.Message, zap.String("code", appErrors.ErrEmptyData.Code))
		return []models.StudentRecord{}, nil
	}

	var batches []json.RawMessage
	if err := json.Unmarshal(data, &batches); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrJSONDecode.Code, "data is not a valid array")
	}

	records := make([]models.StudentRecord, 0, len(batches))
	for batchIdx, batch := range batches {
		batch = bytes.TrimSpace(batch)
		if len(batch) == 0 || batch[0] != '[' {
			p.logger.Debug("skipping non-array batch", zap.Int("batch", batchIdx))
			continue
		}

		var elements []json.RawMessage
		if err := json.Unmarshal(batch, &elements); err != nil {
			return records, appErrors.Wrap(err, appErrors.ErrJSONDecode.Code, fmt.Sprintf("batch %d is not a valid array", batchIdx))
		}

		for elemIdx, element := range elements {
			record, err := p.decodeStudent(element)
			if err != nil {
				return records, appErrors.Wrap(err, appErrors.ErrJSONDecode.Code, fmt.Sprintf("invalid student at data[%d][%d]", batchIdx, elemIdx))
			}
			records = append(records, record)
		}
	}

	return records, nil
}

func (p *StudentParser) decodeStudent(element json.RawMessage) (models.StudentRecord, error) {
	element = bytes.TrimSpace(element)
	if len(element) == 0 || element[0] != '{' {
		return models.StudentRecord{}, fmt.Errorf("expected object, got %s", truncate(element, 32))
	}

	var payload studentPayload
	if err := json.Unmarshal(element, &payload); err != nil {
		return models.StudentRecord{}, err
	}
	if err := p.validator.Struct(payload); err != nil {
		return models.StudentRecord{}, err
	}
	return payload.record(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
