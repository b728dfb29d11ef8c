package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/couchcryptid/climate-analytics-service/internal/domain"
)

// Result encodings and their content types.
const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"

	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/x-msgpack"
)

// Processor turns request messages into result messages. It implements the
// pipeline Transformer.
type Processor struct {
	service  Service
	encoding string
	logger   *slog.Logger
}

// NewProcessor creates a Processor that encodes results as JSON or msgpack.
func NewProcessor(service Service, encoding string, logger *slog.Logger) *Processor {
	if encoding != EncodingMsgpack {
		encoding = EncodingJSON
	}
	return &Processor{service: service, encoding: encoding, logger: logger}
}

// Transform decodes one request, analyses it and encodes the result. The
// message key is the request ID, generated when the request has none.
//
// Undecodable payloads are returned as errors so the pipeline skips them.
// Requests that decode but are rejected still produce a result carrying the
// validation error, so the caller gets an answer.
func (p *Processor) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	var req domain.AnalysisRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("decode analysis request: %w", err)
	}
	if req.ID == "" {
		if len(raw.Key) > 0 {
			req.ID = string(raw.Key)
		} else {
			req.ID = uuid.NewString()
		}
	}

	res, err := p.service.Analyze(ctx, req)
	if err != nil {
		if !IsRequestError(err) {
			return domain.OutputEvent{}, fmt.Errorf("analyse request %s: %w", req.ID, err)
		}
		p.logger.Warn("analysis request rejected", "id", req.ID, "kind", req.Kind, "error", err)
		res = domain.AnalysisResult{
			ID:         req.ID,
			Kind:       req.Kind,
			DatasetID:  req.DatasetID,
			Location:   req.Location,
			Error:      domain.ClassifyError(err),
			ComputedAt: domain.Now(),
		}
	}

	value, contentType, err := Encode(res, p.encoding)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	return domain.OutputEvent{
		Key:   []byte(res.ID),
		Value: value,
		Headers: map[string]string{
			"content-type": contentType,
			"kind":         res.Kind,
		},
	}, nil
}

// Encode serialises v as JSON or msgpack. Msgpack uses the json struct tags so
// both encodings share field names.
func Encode(v any, encoding string) ([]byte, string, error) {
	if encoding == EncodingMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(v); err != nil {
			return nil, "", fmt.Errorf("encode msgpack: %w", err)
		}
		return buf.Bytes(), ContentTypeMsgpack, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("encode json: %w", err)
	}
	return b, ContentTypeJSON, nil
}

// Decode is the inverse of Encode.
func Decode(data []byte, encoding string, v any) error {
	if encoding == EncodingMsgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(data))
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
	return json.Unmarshal(data, v)
}
