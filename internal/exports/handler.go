package exports

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/phone"
	"raccordement_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultCurrency       = "EUR"
	defaultTimezone       = "Europe/Paris"
	dateLayout            = "2006-01-02"
	conversionPaidRequest = "Raccordement_Paye"
)

// Store is the persistence the handler needs.
type Store interface {
	keyLookup
	CreateAPIKey(ctx context.Context, name, keyHash, keyPrefix string, createdBy *uuid.UUID) (APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error
	TouchAPIKey(ctx context.Context, keyID uuid.UUID)
	ListConversionEvents(ctx context.Context, from, to time.Time, limit int) ([]ConversionEvent, error)
	ListExportedKeys(ctx context.Context, orderIDs []string) (map[string]struct{}, error)
	RecordExports(ctx context.Context, rows []ExportRecord) error
}

type Handler struct {
	repo Store
	val  *validator.Validator
	log  *logger.Logger
}

func NewHandler(repo Store, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, val: val, log: log}
}

// ---- Credential management (admin) ----

type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type APIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  string     `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// HandleCreateAPIKey handles POST /api/v1/admin/exports/credentials
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate API key", nil)
		return
	}

	createdBy := identity.UserID()
	key, err := h.repo.CreateAPIKey(c.Request.Context(), strings.TrimSpace(req.Name), hash, prefix, &createdBy)
	if httpkit.HandleError(c, err) {
		return
	}

	h.log.Info("export credential created", "keyId", key.ID, "by", createdBy)
	httpkit.JSON(c, http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            plaintext,
	})
}

// HandleListAPIKeys handles GET /api/v1/admin/exports/credentials
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.repo.ListAPIKeys(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		result[i] = toAPIKeyResponse(k)
	}
	httpkit.OK(c, result)
}

// HandleRevokeAPIKey handles DELETE /api/v1/admin/exports/credentials/:id
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}

	if err := h.repo.RevokeAPIKey(c.Request.Context(), keyID); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ---- Google Ads CSV export (API key) ----

// ExportGoogleAdsCSV handles GET /api/v1/exports/google-ads/conversions.csv
func (h *Handler) ExportGoogleAdsCSV(c *gin.Context) {
	if keyID, ok := c.Get(exportKeyIDKey); ok {
		if id, ok := keyID.(uuid.UUID); ok {
			h.repo.TouchAPIKey(c.Request.Context(), id)
		}
	}

	fromDate, toDate, err := parseDateRange(c, time.Now().UTC())
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid date range", err.Error())
		return
	}

	limit := parseLimit(c.Query("limit"), 5000, 50000)
	currency := strings.ToUpper(strings.TrimSpace(c.DefaultQuery("currency", defaultCurrency)))
	useEnhanced := parseBool(c.Query("enhanced"))

	tzName := strings.TrimSpace(c.DefaultQuery("timezone", defaultTimezone))
	location, err := time.LoadLocation(tzName)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid timezone", nil)
		return
	}

	events, err := h.repo.ListConversionEvents(c.Request.Context(), fromDate, toDate, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	rows := buildConversionRows(events, location, currency, useEnhanced)
	exported := map[string]struct{}{}
	if len(rows) > 0 {
		exported, err = h.repo.ListExportedKeys(c.Request.Context(), collectOrderIDs(rows))
		if httpkit.HandleError(c, err) {
			return
		}
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename=google-ads-conversions.csv")
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	records, err := writeConversions(writer, tzName, rows, exported, useEnhanced)
	if err != nil {
		h.log.Warn("conversion export interrupted", "error", err)
		return
	}
	if err := h.repo.RecordExports(c.Request.Context(), records); err != nil {
		h.log.Error("record conversion exports failed", "error", err)
	}
}

// ---- Helpers ----

type conversionRow struct {
	RequestID          uuid.UUID
	ConversionName     string
	ConversionTime     time.Time
	ConversionValue    float64
	ConversionCurrency string
	GCLID              string
	OrderID            string
	HashedEmail        string
	HashedPhone        string
}

func (r conversionRow) CSV(useEnhanced bool) []string {
	fields := []string{
		r.GCLID,
		r.ConversionName,
		formatConversionTime(r.ConversionTime),
		formatConversionValue(r.ConversionValue),
		r.ConversionCurrency,
		r.OrderID,
	}
	if useEnhanced {
		fields = append(fields, r.HashedEmail, r.HashedPhone)
	}
	return fields
}

func csvHeaders(useEnhanced bool) []string {
	headers := []string{
		"Google Click ID",
		"Conversion Name",
		"Conversion Time",
		"Conversion Value",
		"Conversion Currency",
		"Order ID",
	}
	if useEnhanced {
		headers = append(headers, "Email", "Phone Number")
	}
	return headers
}

func collectOrderIDs(rows []conversionRow) []string {
	orderIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		orderIDs = append(orderIDs, row.OrderID)
	}
	return orderIDs
}

// writeConversions writes the parameters line, the header and every row not
// exported before. It returns the rows to remember.
func writeConversions(writer *csv.Writer, tzName string, rows []conversionRow, exported map[string]struct{}, useEnhanced bool) ([]ExportRecord, error) {
	if err := writer.Write([]string{"Parameters:TimeZone=" + tzName}); err != nil {
		return nil, err
	}
	if err := writer.Write(csvHeaders(useEnhanced)); err != nil {
		return nil, err
	}

	records := make([]ExportRecord, 0, len(rows))
	for _, row := range rows {
		if _, done := exported[exportKey(row.OrderID, row.ConversionName)]; done {
			continue
		}
		if err := writer.Write(row.CSV(useEnhanced)); err != nil {
			return nil, err
		}
		records = append(records, ExportRecord{
			RequestID:       row.RequestID,
			ConversionName:  row.ConversionName,
			ConversionTime:  row.ConversionTime,
			ConversionValue: row.ConversionValue,
			GCLID:           row.GCLID,
			OrderID:         row.OrderID,
		})
	}
	writer.Flush()
	return records, writer.Error()
}

func toAPIKeyResponse(key APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:         key.ID,
		Name:       key.Name,
		KeyPrefix:  key.KeyPrefix,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt.Format(time.RFC3339),
		LastUsedAt: key.LastUsedAt,
	}
}

func parseDateRange(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	fromStr := strings.TrimSpace(c.Query("fromDate"))
	toStr := strings.TrimSpace(c.Query("toDate"))

	from := now.AddDate(0, 0, -90)
	to := now

	if fromStr != "" {
		parsed, err := time.Parse(dateLayout, fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse(dateLayout, toStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed.Add(24*time.Hour - time.Second)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("toDate before fromDate")
	}
	return from, to, nil
}

func parseLimit(raw string, fallback int, max int) int {
	limit := fallback
	if raw = strings.TrimSpace(raw); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	if limit > max {
		return max
	}
	if limit < 1 {
		return fallback
	}
	return limit
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "oui":
		return true
	default:
		return false
	}
}

func buildConversionRows(events []ConversionEvent, location *time.Location, currency string, includeEnhanced bool) []conversionRow {
	rows := make([]conversionRow, 0, len(events))
	for _, event := range events {
		if event.GCLID == "" {
			continue
		}
		row := conversionRow{
			RequestID:          event.RequestID,
			ConversionName:     conversionPaidRequest,
			ConversionTime:     event.PaidAt.In(location),
			ConversionValue:    float64(event.AmountCents) / 100,
			ConversionCurrency: currency,
			GCLID:              event.GCLID,
			OrderID:            event.Reference,
		}
		if includeEnhanced {
			row.HashedEmail = hashEmail(event.Email)
			row.HashedPhone = hashPhone(event.Phone)
		}
		rows = append(rows, row)
	}
	return rows
}

func formatConversionTime(value time.Time) string {
	return value.Format("2006-01-02 15:04:05-0700")
}

func formatConversionValue(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

func hashEmail(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return ""
	}

	if user, domain, ok := strings.Cut(value, "@"); ok && (domain == "gmail.com" || domain == "googlemail.com") {
		user = strings.ReplaceAll(user, ".", "")
		if plus := strings.Index(user, "+"); plus >= 0 {
			user = user[:plus]
		}
		value = user + "@" + domain
	}
	return sha256Sum(value)
}

// hashPhone hashes the E.164 form Google expects. French national numbers
// get their country code.
func hashPhone(value string) string {
	normalized := phone.NormalizeE164(value)
	if !strings.HasPrefix(normalized, "+") {
		return ""
	}
	return sha256Sum(normalized)
}

func sha256Sum(value string) string {
	hash := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", hash)
}
