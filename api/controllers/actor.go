package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/mbongotech/cookpay-backend/pkg/errors"
)

const actorIDHeader = "X-Actor-Id"

// requireActorID reads the acting operator's id from the request. Upstream
// auth terminates at the gateway and forwards the identity in a header.
func requireActorID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "X-Actor-Id header is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid X-Actor-Id header")
	}
	return id, nil
}

// optionalActorID reads the actor header when present.
func optionalActorID(r *http.Request) *uuid.UUID {
	raw := strings.TrimSpace(r.Header.Get(actorIDHeader))
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
