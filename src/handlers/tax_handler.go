package handlers

import (
	"errors"
	"net/http"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/security/validation"
	"github.com/username/optionstaxhub/backend/src/tax"
	"github.com/username/optionstaxhub/backend/src/utils"
)

type TaxHandler struct{}

func NewTaxHandler() *TaxHandler {
	return &TaxHandler{}
}

// HandleGetTaxBrackets returns the bracket tables, NIIT parameters and loss
// limits for the requested year/status/income. Unlike the analysis endpoint
// this one is strict: an unsupported year is the caller's error.
func (h *TaxHandler) HandleGetTaxBrackets(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	q := r.URL.Query()

	filingStatus, err := validation.ValidateFilingStatus(q.Get("filing_status"))
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	income, err := validation.ValidateFloatString(q.Get("income"), "income", false, 0, validation.MaxTaxableIncome)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if q.Get("income") == "" {
		income = 75000
	}

	taxYear, err := validation.ValidateIntString(q.Get("tax_year"), "tax_year", false, 2000, 2100)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if taxYear == 0 {
		taxYear = config.Cfg.DefaultTaxYear
	}

	summary, err := tax.BracketsFor(models.TaxProfile{
		FilingStatus:          filingStatus,
		EstimatedAnnualIncome: income,
		TaxYear:               taxYear,
	})
	if err != nil {
		var yearErr tax.ErrUnsupportedYear
		if errors.As(err, &yearErr) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		ctxLogger.Error("Failed to build tax bracket summary", "error", err)
		utils.SendJSONError(w, "Failed to build tax bracket summary", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, summary, http.StatusOK)
}

// HandleHealth reports service liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
