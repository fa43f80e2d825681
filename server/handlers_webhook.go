package server

import (
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	internalerrors "github.com/IDEA-on-Action/mcp-auth/internal/errors"
)

// maxWebhookBody caps the payload read before signature verification.
const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookHandler authenticates inbound webhook requests by signature and
// timestamp. Tokens play no part here. Rejections stay generic; only the
// replay-window rejection is named, since the timestamp is public input.
func (s *Server) WebhookHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.PathValue("provider")
		verifier, ok := s.webhooks[provider]
		if !ok {
			writeJSONError(w, "not_found", "unknown webhook provider", http.StatusNotFound)
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			writeJSONError(w, "invalid_request", "failed to read request body", http.StatusBadRequest)
			return
		}

		err = verifier.Verify(payload, r.Header.Get(HeaderWebhookSignature), r.Header.Get(HeaderWebhookTimestamp))
		switch {
		case internalerrors.Is(err, internalerrors.ErrReplayRejected):
			writeJSONError(w, "replay_rejected", "request timestamp outside tolerance", http.StatusUnauthorized)
			return
		case err != nil:
			writeJSONError(w, "invalid_signature", "signature verification failed", http.StatusUnauthorized)
			return
		}

		log.Info().
			Str("provider", provider).
			Int("payload_bytes", len(payload)).
			Msg("webhook accepted")
		w.WriteHeader(http.StatusAccepted)
	}
}
