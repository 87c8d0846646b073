package intake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
)

const (
	// SourceDateLayout is the day/month/year layout dates are read in.
	SourceDateLayout = "02/01/2006"
	// SubmitDateLayout is the unpadded year-month-day layout sent downstream.
	SubmitDateLayout = "2006-1-2"
)

// SubmitConfig names the endpoint and the extracted fields sent to it.
type SubmitConfig struct {
	Endpoint         string
	Timeout          time.Duration
	ClaimField       string
	DescriptionField string
	DateField        string
	PatientField     string
}

// DefaultSubmitConfig returns the field mapping of the intake forms. The
// endpoint is empty, which disables submission.
func DefaultSubmitConfig() SubmitConfig {
	return SubmitConfig{
		Timeout:          30 * time.Second,
		ClaimField:       "Reservation Number",
		DescriptionField: "Clinic",
		DateField:        "Date",
		PatientField:     "MRN",
	}
}

// Submitter posts the claim fields of a record as a multipart form.
type Submitter struct {
	cfg    SubmitConfig
	client *http.Client
}

// NewSubmitter creates a submitter. A nil client gets one with cfg.Timeout.
func NewSubmitter(cfg SubmitConfig, client *http.Client) *Submitter {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Submitter{cfg: cfg, client: client}
}

// Enabled reports whether an endpoint is configured.
func (s *Submitter) Enabled() bool { return s.cfg.Endpoint != "" }

// ReformatDate turns "05/03/2021" (day/month/year) into "2021-3-5".
func ReformatDate(s string) (string, error) {
	t, err := time.Parse(SourceDateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", common.NewError(common.ErrorDateFormat, "submit", "", fmt.Errorf("date %q: %w", s, err))
	}
	return t.Format(SubmitDateLayout), nil
}

// Form returns the submission fields in send order.
func (s *Submitter) Form(fields *extract.Result) ([][2]string, error) {
	if fields == nil {
		fields = extract.NewResult()
	}
	get := func(name string) (string, error) {
		v, err := fields.Get(name)
		if err != nil {
			return "", common.NewError(common.ErrorFieldMissing, "submit", "", err)
		}
		return v, nil
	}

	claim, err := get(s.cfg.ClaimField)
	if err != nil {
		return nil, err
	}
	desc, err := get(s.cfg.DescriptionField)
	if err != nil {
		return nil, err
	}
	rawDate, err := get(s.cfg.DateField)
	if err != nil {
		return nil, err
	}
	date, err := ReformatDate(rawDate)
	if err != nil {
		return nil, err
	}
	patient, err := get(s.cfg.PatientField)
	if err != nil {
		return nil, err
	}
	return [][2]string{
		{"Claim_Num", claim},
		{"Claim_Description", desc},
		{"Claim_Date", date},
		{"Patient_ID", patient},
	}, nil
}

// Submit posts fields. Missing fields and malformed dates fail before
// anything is sent; transport errors and non-2xx answers are
// SUBMISSION_ERROR.
func (s *Submitter) Submit(ctx context.Context, fields *extract.Result) error {
	if !s.Enabled() {
		slog.Debug("Submission disabled, no endpoint configured")
		return nil
	}
	form, err := s.Form(fields)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, kv := range form {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return common.NewError(common.ErrorInternal, "submit", "", err)
		}
	}
	if err := mw.Close(); err != nil {
		return common.NewError(common.ErrorInternal, "submit", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, &body)
	if err != nil {
		return common.NewError(common.ErrorSubmission, "submit", "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return common.NewError(common.ErrorSubmission, "submit", "", err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("Error posting data to the endpoint", "status", resp.StatusCode, "body", string(respBody))
		return common.NewError(common.ErrorSubmission, "submit", "",
			fmt.Errorf("endpoint answered %d", resp.StatusCode))
	}
	slog.Info("Data posted successfully", "status", resp.StatusCode, "body", string(respBody))
	return nil
}

// Handle implements Handler.
func (s *Submitter) Handle(ctx context.Context, item Item, out *pipeline.Outcome) error {
	err := s.Submit(ctx, out.Fields)
	var pe *common.ProcessingError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = item.Path
	}
	return err
}
