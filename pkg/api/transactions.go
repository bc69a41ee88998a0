package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"approval-ledger/pkg/logging"
	"approval-ledger/pkg/report"
	"approval-ledger/pkg/upload"
	"approval-ledger/pkg/workflow"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const transactionResource = "Transaction"

// handleCreateDeposit creates a deposit from a multipart form carrying the
// payment proof in the "image" field.
func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	// validate before the proof is stored
	amount, err := workflow.ParseAmount(p.raw("amount"))
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}
	if err := p.requireFields("createdAt", "createdBy"); err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	imagePath, err := s.saveProof(r)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	txn, err := s.transactions.CreateDeposit(r.Context(), workflow.DepositRequest{
		Amount:        amount,
		CreatedAt:     p.str("createdAt"),
		CreatedBy:     p.id("createdBy"),
		PaymentMethod: p.str("paymentMethod"),
		ImagePath:     imagePath,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("proof stored without transaction", zap.String("image_path", imagePath))
		writeError(w, r, err, transactionResource)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Transaction created successfully",
		"transaction": txn,
	})
}

// saveProof stores the "image" upload and returns its reference.
func (s *Server) saveProof(r *http.Request) (string, error) {
	if s.uploads == nil {
		return "", fmt.Errorf("%w: no upload sink configured", workflow.ErrStore)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if isMissingFile(err) || r.MultipartForm == nil {
			return "", &workflow.ValidationError{Field: "image", Message: "is required"}
		}
		return "", &workflow.ValidationError{Field: "image", Message: err.Error()}
	}
	defer file.Close()

	ref, err := s.uploads.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		if errors.Is(err, upload.ErrEmptyUpload) {
			return "", &workflow.ValidationError{Field: "image", Message: "is empty"}
		}
		return "", fmt.Errorf("%w: save proof: %w", workflow.ErrStore, err)
	}
	return ref, nil
}

func (s *Server) handleCreateWalletDeposit(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}
	amount, err := workflow.ParseAmount(p.raw("amount"))
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	txn, err := s.transactions.CreateWalletDeposit(r.Context(), workflow.WalletDepositRequest{
		Amount:       amount,
		CreatedAt:    p.str("createdAt"),
		CreatedBy:    p.id("createdBy"),
		WebsiteName:  p.str("websiteName"),
		Username:     p.str("username"),
		CredentialID: p.id("id"),
	})
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":     "Transaction created successfully",
		"transaction": map[string]string{"id": txn.ID},
	})
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}
	amount, err := workflow.ParseAmount(p.raw("amount"))
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	txn, err := s.transactions.CreateWithdrawal(r.Context(), workflow.WithdrawalRequest{
		Amount:       amount,
		CreatedAt:    p.str("createdAt"),
		CreatedBy:    p.id("createdBy"),
		WebsiteName:  p.str("websiteName"),
		WebsiteURL:   p.str("websiteUrl"),
		Username:     p.str("username"),
		CredentialID: p.id("id"),
	})
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "Transaction created successfully",
		"transactionId": txn.ID,
	})
}

func (s *Server) handleAcceptTransaction(w http.ResponseWriter, r *http.Request) {
	s.decideTransaction(w, r, workflow.TransactionCompleted, "Transaction accepted")
}

func (s *Server) handleRejectTransaction(w http.ResponseWriter, r *http.Request) {
	s.decideTransaction(w, r, workflow.TransactionFailed, "Transaction rejected")
}

func (s *Server) decideTransaction(w http.ResponseWriter, r *http.Request, outcome workflow.TransactionStatus, message string) {
	id := mux.Vars(r)["id"]

	txn, err := s.transactions.Decide(r.Context(), id, outcome)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       message,
		"transactionId": txn.ID,
		"status":        txn.Status,
	})
}

// handleUpdateTransaction applies an admin patch.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	p, err := s.readParams(w, r)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	txn, err := s.transactions.Update(r.Context(), p.id("id"), workflow.AdminPatch{
		TransactionID: p.str("transactionId"),
		AcceptedAt:    p.str("acceptedAt"),
		Status:        p.str("status"),
	})
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":            "Transaction updated successfully",
		"updatedTransaction": txn,
	})
}

// handleListTransactions lists transactions, optionally for one user.
// requireUser makes the userId query parameter mandatory.
func (s *Server) handleListTransactions(requireUser bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if requireUser && userID == "" {
			writeError(w, r, &workflow.ValidationError{Field: "userId", Message: "is required"}, transactionResource)
			return
		}

		txns, err := s.transactions.List(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, transactionResource)
			return
		}
		if len(txns) == 0 {
			writeMessage(w, http.StatusNotFound, "No transactions found.")
			return
		}

		writeJSON(w, http.StatusOK, txns)
	}
}

// handleExportTransactions streams the transactions as an XLSX workbook.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))

	txns, err := s.transactions.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	filename := "transactions.xlsx"
	if userID != "" {
		filename = fmt.Sprintf("transactions_%s.xlsx", sanitizeFilename(userID))
	}

	var buf bytes.Buffer
	if err := report.WriteTransactions(&buf, txns); err != nil {
		writeError(w, r, err, transactionResource)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
