package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"tabula/internal/core/id"
	"tabula/internal/domain/audit"
	"tabula/pkg/logger"
)

// CompressionAlgo specifies the payload compression algorithm.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditStore persists posting audit events. Large payloads are
// zstd-compressed before insert.
type AuditStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

// NewAuditStore creates an audit store.
func NewAuditStore(txManager *TxManager) (*AuditStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record appends one audit event. A payload that fails to serialize is
// logged and dropped rather than failing the posting transaction.
func (s *AuditStore) Record(ctx context.Context, event audit.Event) error {
	var payloadJSON []byte
	if event.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			logger.Warn(ctx, "audit payload not serializable, dropping",
				"document_id", event.DocumentID,
				"error", err)
			payloadJSON = nil
		}
	}

	algo := CompressionNone
	var compressed []byte
	if len(payloadJSON) > s.compressThreshold {
		compressed = s.encoder.EncodeAll(payloadJSON, nil)
		payloadJSON = nil
		algo = CompressionZstd
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	sql := `
		INSERT INTO sys_audit (
			id, document_id, doc_type, action, user_id,
			payload, payload_compressed, compression_algo, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		event.ID, event.DocumentID, event.DocType, event.Action,
		event.UserID, payloadJSON, compressed, algo, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}

// DocumentHistory retrieves audit events for a document, newest first.
func (s *AuditStore) DocumentHistory(ctx context.Context, documentID id.ID, limit int) ([]audit.Event, error) {
	sql := `
		SELECT id, document_id, doc_type, action, user_id,
			   payload, payload_compressed, compression_algo, occurred_at
		FROM sys_audit
		WHERE document_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e          audit.Event
			payload    []byte
			compressed []byte
			algo       CompressionAlgo
		)
		err := rows.Scan(
			&e.ID, &e.DocumentID, &e.DocType, &e.Action, &e.UserID,
			&payload, &compressed, &algo, &e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if algo == CompressionZstd && len(compressed) > 0 {
			payload, err = s.decoder.DecodeAll(compressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress payload: %w", err)
			}
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Ensure interface compliance.
var _ audit.Recorder = (*AuditStore)(nil)
