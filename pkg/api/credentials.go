package api

import (
	"context"
	"net/http"
	"strings"

	"approval-ledger/pkg/workflow"
)

const credentialResource = "Credential request"

func (s *Server) handleCreateCredential(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	rec, err := s.credentials.Create(r.Context(), workflow.NewCredentialRequest{
		WebsiteName: p.str("websiteName"),
		WebsiteURL:  p.str("websiteUrl"),
		Username:    p.str("username"),
		Password:    p.str("password"),
		ImgURL:      p.str("imgUrl"),
		CreatedBy:   p.id("createdBy"),
	})
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "New ID added successfully",
		"website": rec,
	})
}

func (s *Server) handleAcceptCredential(w http.ResponseWriter, r *http.Request) {
	s.decideCredential(w, r, (*workflow.CredentialService).Approve, "ID Accepted")
}

func (s *Server) handleRejectCredential(w http.ResponseWriter, r *http.Request) {
	s.decideCredential(w, r, (*workflow.CredentialService).Reject, "ID rejected, username already exists")
}

type credentialDecision func(*workflow.CredentialService, context.Context, string) (*workflow.CredentialRequest, error)

func (s *Server) decideCredential(w http.ResponseWriter, r *http.Request, decide credentialDecision, message string) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	rec, err := decide(s.credentials, r.Context(), p.id("id"))
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"id":      rec.ID,
		"status":  rec.Status,
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	// passwords are kept as sent, surrounding spaces included
	newPassword, ok := p.raw("newPassword").(string)
	if !ok {
		newPassword = p.str("newPassword")
	}

	err = s.credentials.ChangePassword(r.Context(), p.id("userId"), p.id("selectedId"), newPassword)
	if err != nil {
		writeError(w, r, err, credentialResource)
		return
	}

	writeMessage(w, http.StatusOK, "Password changed successfully")
}

// handleListCredentials lists credential requests, optionally for one user.
// requireUser makes the userId query parameter mandatory.
func (s *Server) handleListCredentials(requireUser bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if requireUser && userID == "" {
			writeError(w, r, &workflow.ValidationError{Field: "userId", Message: "is required"}, credentialResource)
			return
		}

		recs, err := s.credentials.List(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, credentialResource)
			return
		}
		if len(recs) == 0 {
			writeMessage(w, http.StatusNotFound, "No IDs found")
			return
		}

		writeJSON(w, http.StatusOK, recs)
	}
}
