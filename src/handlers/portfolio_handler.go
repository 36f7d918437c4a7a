package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/optionstaxhub/backend/src/config"
	"github.com/username/optionstaxhub/backend/src/logger"
	"github.com/username/optionstaxhub/backend/src/models"
	"github.com/username/optionstaxhub/backend/src/parsers"
	"github.com/username/optionstaxhub/backend/src/security/validation"
	"github.com/username/optionstaxhub/backend/src/services"
	"github.com/username/optionstaxhub/backend/src/utils"
)

type PortfolioHandler struct {
	analysisService services.AnalysisService
}

func NewPortfolioHandler(analysisService services.AnalysisService) *PortfolioHandler {
	return &PortfolioHandler{
		analysisService: analysisService,
	}
}

// HandleAnalyze accepts a multipart CSV upload plus optional tax profile form
// fields and returns the full portfolio analysis.
func (h *PortfolioHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to process upload or file too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		ctxLogger.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		ctxLogger.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		ctxLogger.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctxLogger.Info("File content validated", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	profile, err := profileFromForm(r)
	if err != nil {
		ctxLogger.Warn("Invalid tax profile form fields", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	today := models.DateOf(time.Now())
	parseResult, err := parsers.ParseUpload(file, today)
	if err != nil {
		ctxLogger.Warn("CSV parsing failed", "filename", fileHeader.Filename, "error", err)
		if errors.Is(err, parsers.ErrUnrecognizedFormat) {
			utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		} else {
			utils.SendJSONError(w, fmt.Sprintf("%v: %v", services.ErrParsingFailed, err), http.StatusBadRequest)
		}
		return
	}

	ctxLogger.Info("Running portfolio analysis", "filename", fileHeader.Filename, "transactions", len(parseResult.Transactions))

	analysis := h.analysisService.Analyze(r.Context(), services.AnalysisRequest{
		Parse:   parseResult,
		Profile: profile,
		AsOf:    today,
	})

	utils.SendJSON(w, analysis, http.StatusOK)
}

// profileFromForm reads the optional tax profile fields from the multipart
// form. Absent fields stay zero and are defaulted downstream; present but
// malformed fields reject the request.
func profileFromForm(r *http.Request) (*models.TaxProfile, error) {
	filingStatusRaw := r.FormValue("filing_status")
	incomeRaw := r.FormValue("estimated_annual_income")
	stateRaw := r.FormValue("state")
	taxYearRaw := r.FormValue("tax_year")

	if filingStatusRaw == "" && incomeRaw == "" && stateRaw == "" && taxYearRaw == "" {
		return nil, nil
	}

	requestID := RequestIDFromContext(r.Context())
	for field, value := range map[string]string{"filing_status": filingStatusRaw, "state": stateRaw} {
		if err := validation.CheckXSSPatterns(value, field, requestID); err != nil {
			return nil, err
		}
		if err := validation.CheckFormulaInjection(value, field, requestID); err != nil {
			return nil, err
		}
	}

	filingStatus, err := validation.ValidateFilingStatus(filingStatusRaw)
	if err != nil {
		return nil, err
	}

	income, err := validation.ValidateFloatString(incomeRaw, "estimated_annual_income", false, 0, validation.MaxTaxableIncome)
	if err != nil {
		return nil, err
	}
	if incomeRaw == "" {
		income = 75000
	}

	taxYear, err := validation.ValidateIntString(taxYearRaw, "tax_year", false, 2000, 2100)
	if err != nil {
		return nil, err
	}
	if taxYear == 0 {
		taxYear = config.Cfg.DefaultTaxYear
	}

	state := strings.ToUpper(validation.SanitizeText(strings.TrimSpace(stateRaw)))
	if err := validation.ValidateStringMaxLength(state, 2, "state"); err != nil {
		return nil, err
	}

	return &models.TaxProfile{
		FilingStatus:          filingStatus,
		EstimatedAnnualIncome: income,
		State:                 state,
		TaxYear:               taxYear,
	}, nil
}
