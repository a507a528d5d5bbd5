// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

// Package tenant enforces that a requested record belongs to the caller's
// organization. Validation always reads through to the store; nothing is
// cached between calls.
package tenant

import (
	"context"
	"log/slog"

	"github.com/genos-dev/genos/internal/events"
	"github.com/genos-dev/genos/internal/store"
	genoserr "github.com/genos-dev/genos/pkg/errors"
)

// Violation reasons, attached to every violation error as the "reason"
// field.
const (
	ReasonUnidentified = "unidentified"
	ReasonNotFound     = "not_found"
	ReasonMismatch     = "mismatch"
)

// Client-facing violation messages.
const (
	MsgUnidentified = "cannot identify organization"
	MsgNotFound     = "record not found"
	MsgMismatch     = "record does not belong to your profile"
)

var errUnidentified = violation(MsgUnidentified, ReasonUnidentified)

// Outcome is a successful validation.
type Outcome struct {
	Valid bool   `json:"valid"`
	OrgID string `json:"orgId"`
}

// Validator checks record ownership. Mismatches are audited through the
// privileged audit store.
type Validator struct {
	resolver  Resolver
	ownership store.OwnershipStore
	audit     store.AuditStore
	emitter   events.Emitter
}

// NewValidator creates a Validator. audit should come from the privileged
// store so that violation records are written regardless of tenant scope.
func NewValidator(resolver Resolver, ownership store.OwnershipStore, audit store.AuditStore, emitter events.Emitter) *Validator {
	if resolver == nil {
		resolver = ContextResolver{}
	}
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &Validator{
		resolver:  resolver,
		ownership: ownership,
		audit:     audit,
		emitter:   emitter,
	}
}

// Validate checks that entityID in table belongs to the caller. Every
// failure is a tenant violation; only an ownership mismatch is audited.
func (v *Validator) Validate(ctx context.Context, entityID, table string) (Outcome, error) {
	caller, err := v.resolver.ResolveOrg(ctx)
	if err != nil || caller.OrgID == "" {
		return Outcome{}, errUnidentified
	}

	owner, err := v.ownership.OwnerOrg(ctx, table, entityID)
	if err != nil {
		// Lookup failures and missing rows look the same to the caller.
		if !genoserr.IsNotFound(err) {
			slog.Warn("tenant ownership lookup failed",
				"table", table, "entity_id", entityID, "error", err)
		}
		return Outcome{}, violation(MsgNotFound, ReasonNotFound, genoserr.FieldTable(table))
	}

	if owner != caller.OrgID {
		v.recordViolation(ctx, caller, entityID, owner, table)
		return Outcome{}, violation(MsgMismatch, ReasonMismatch,
			genoserr.FieldOrgID(caller.OrgID), genoserr.FieldTable(table))
	}

	return Outcome{Valid: true, OrgID: caller.OrgID}, nil
}

// recordViolation writes the audit entry. The write is best-effort: a
// failure is logged and the violation is still returned.
func (v *Validator) recordViolation(ctx context.Context, caller Identity, entityID, targetOrg, table string) {
	details := map[string]any{
		"target_entity_id": entityID,
		"target_org_id":    targetOrg,
		"table_name":       table,
	}

	slog.Warn("tenant violation attempt",
		"organization_id", caller.OrgID,
		"user_id", caller.UserID,
		"table", table,
		"entity_id", entityID,
	)

	if v.audit != nil {
		err := v.audit.Append(context.WithoutCancel(ctx), &store.AuditEntry{
			OrganizationID: caller.OrgID,
			Actor:          caller.UserID,
			Action:         store.AuditActionTenantViolation,
			EntityTable:    table,
			EntityID:       entityID,
			Details:        details,
		})
		if err != nil {
			slog.Error("tenant violation audit write failed", "organization_id", caller.OrgID, "error", err)
		}
	}

	v.emitter.Emit(ctx, events.Event{
		Type:           events.TypeTenantViolation,
		OrganizationID: caller.OrgID,
		UserID:         caller.UserID,
		Data:           details,
	})
}

func violation(msg, reason string, fields ...genoserr.Attr) error {
	fields = append(fields, genoserr.Field("reason", reason))
	return genoserr.New(genoserr.CodeTenantViolation, msg, fields...)
}

// Reason returns the violation reason of err, or "".
func Reason(err error) string {
	if !genoserr.IsTenantViolation(err) {
		return ""
	}
	r, _ := genoserr.FieldsOf(err)["reason"].(string)
	return r
}
