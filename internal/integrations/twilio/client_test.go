package twilio

import (
	"errors"
	"net/http"
	"testing"

	xerrors "tablevoice-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	twclient "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

func TestMapError(t *testing.T) {
	c := NewClient("AC00000000000000000000000000000000", "token", zap.NewNop())

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{
			name:    "404 status is not found",
			err:     &twclient.TwilioRestError{Status: http.StatusNotFound, Message: "not found"},
			wantErr: xerrors.ErrNotFound,
		},
		{
			name:    "code 20404 is not found",
			err:     &twclient.TwilioRestError{Status: http.StatusBadRequest, Code: 20404, Message: "resource gone"},
			wantErr: xerrors.ErrNotFound,
		},
		{
			name:    "address requirement",
			err:     &twclient.TwilioRestError{Status: http.StatusBadRequest, Code: 21631},
			wantErr: xerrors.ErrInvalidInput,
		},
		{
			name:    "regulatory bundle requirement",
			err:     &twclient.TwilioRestError{Status: http.StatusBadRequest, Code: 21649},
			wantErr: xerrors.ErrInvalidInput,
		},
		{
			name:    "number taken meanwhile",
			err:     &twclient.TwilioRestError{Status: http.StatusBadRequest, Code: 21422},
			wantErr: xerrors.ErrConflict,
		},
		{
			name:    "other provider failure",
			err:     &twclient.TwilioRestError{Status: http.StatusInternalServerError, Code: 20500},
			wantErr: xerrors.ErrUpstream,
		},
		{
			name:    "transport failure",
			err:     errors.New("connection refused"),
			wantErr: xerrors.ErrUpstream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.mapError(tt.err, "number release failed"), tt.wantErr)
		})
	}
}
