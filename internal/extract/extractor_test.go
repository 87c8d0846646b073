package extract

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/ocr/mock"
	"github.com/MeKo-Tech/formflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zone(field, name string, x, y, w, h float64) forms.Zone {
	return forms.Zone{
		X: x, Y: y, Width: w, Height: h,
		ActualWidth: 400, ActualHeight: 200,
		Name: name, IndexingField: field,
	}
}

func singlePage(zones ...forms.Zone) *forms.Form {
	return &forms.Form{Count: 1, TemplateImages: []forms.TemplateImage{{Zones: zones}}}
}

func TestExtractZones_KeywordWithoutRegex(t *testing.T) {
	engine := mock.NewEngine("Reservation Number: 12345")
	ex := New(engine, DefaultOptions())
	img := testutil.GenerateFormImage(1, 400, 200)

	res, err := ex.ExtractZones(context.Background(), img, singlePage(zone("Reservation Number", "ResNo", 10, 10, 200, 40)))
	require.NoError(t, err)

	v, err := res.Get("Reservation Number")
	require.NoError(t, err)
	assert.Equal(t, "12345", v)
	assert.False(t, res.Has("ResNo"))
}

func TestExtractZones_RegexAndWhitelist(t *testing.T) {
	engine := mock.NewEngine("Date 05/03/2021", "MRN: 778")
	dateZone := zone("Date", "VisitDate", 0, 0, 100, 20)
	dateZone.Regex = `(\d{2}/\d{2}/\d{4})`
	dateZone.WhiteList = "0123456789/"
	mrnZone := zone("MRN", "MRN", 0, 20, 100, 20)

	res, err := New(engine, DefaultOptions()).ExtractZones(context.Background(),
		testutil.GenerateFormImage(2, 400, 200), singlePage(dateZone, mrnZone))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Date": "05/03/2021", "MRN": "778"}, res.Map())

	calls := engine.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "0123456789/", calls[0].Whitelist)
	assert.Equal(t, "", calls[1].Whitelist, "whitelist is cleared for zones without one")
}

func TestExtractZones_CumulativeRescale(t *testing.T) {
	engine := mock.NewEngine()
	first := zone("A", "A", 0, 0, 100, 50) // 200x100 -> 400x200
	second := zone("B", "B", 0, 0, 80, 40)
	second.ActualWidth, second.ActualHeight = 100, 50 // 400x200 -> 100x50
	third := zone("C", "C", 300, 150, 100, 50)        // 100x50 -> 400x200

	_, err := New(engine, DefaultOptions()).ExtractZones(context.Background(),
		image.NewGray(image.Rect(0, 0, 200, 100)), singlePage(first, second, third))
	require.NoError(t, err)

	calls := engine.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, image.Pt(100, 50), calls[0].Size)
	assert.Equal(t, image.Pt(80, 40), calls[1].Size)
	assert.Equal(t, image.Pt(100, 50), calls[2].Size)
}

func TestExtractZones_SkipsUnusableZones(t *testing.T) {
	engine := mock.NewEngine("Clinic: North")
	noRef := zone("MRN", "MRN", 0, 0, 50, 20)
	noRef.ActualWidth = 0
	flat := zone("Date", "Date", 0, 0, 50, 0)
	outside := zone("Phone", "Phone", 500, 500, 50, 20)
	ok := zone("Clinic", "Clinic", 10, 10, 50, 20)

	res, err := New(engine, DefaultOptions()).ExtractZones(context.Background(),
		testutil.GenerateFormImage(3, 400, 200), singlePage(noRef, flat, outside, ok))
	require.NoError(t, err)
	assert.Equal(t, []string{"Clinic"}, res.Keys())
	assert.Len(t, engine.Calls(), 1)
}

func TestExtractZones_PartialCropIsClipped(t *testing.T) {
	engine := mock.NewEngine()
	_, err := New(engine, DefaultOptions()).ExtractZones(context.Background(),
		image.NewGray(image.Rect(0, 0, 400, 200)), singlePage(zone("Total", "Total", 350, 180, 100, 50)))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(50, 20), engine.Calls()[0].Size)
}

func TestExtractZones_DuplicateFieldLastWins(t *testing.T) {
	engine := mock.NewEngine("MRN 1", "MRN 2")
	res, err := New(engine, DefaultOptions()).ExtractZones(context.Background(),
		testutil.GenerateFormImage(4, 400, 200),
		&forms.Form{TemplateImages: []forms.TemplateImage{
			{Zones: []forms.Zone{zone("MRN", "first", 0, 0, 50, 20)}},
			{Zones: []forms.Zone{zone("MRN", "second", 0, 20, 50, 20)}},
		}})
	require.NoError(t, err)
	assert.Equal(t, "2", res.Value("MRN"))
	assert.Equal(t, 1, res.Len())
}

func TestExtractZones_NilForm(t *testing.T) {
	engine := mock.NewEngine()
	res, err := New(engine, DefaultOptions()).ExtractZones(context.Background(), testutil.GenerateFormImage(5, 100, 100), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Empty(t, engine.Calls())
}

func TestExtractZones_InvalidImage(t *testing.T) {
	ex := New(mock.NewEngine(), DefaultOptions())
	_, err := ex.ExtractZones(context.Background(), nil, singlePage())
	assert.Equal(t, common.ErrorInvalidImage, common.CodeOf(err))

	_, err = ex.ExtractPage(context.Background(), image.NewGray(image.Rectangle{}), singlePage())
	assert.Equal(t, common.ErrorInvalidImage, common.CodeOf(err))
	assert.False(t, common.IsRetryable(err))
}

func TestExtractZones_EngineError(t *testing.T) {
	boom := errors.New("tesseract failed")
	ex := New(&mock.Engine{Err: boom}, DefaultOptions())
	_, err := ex.ExtractZones(context.Background(), testutil.GenerateFormImage(6, 400, 200),
		singlePage(zone("MRN", "MRN", 0, 0, 50, 20)))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, common.ErrorOCREngine, common.CodeOf(err))
	assert.True(t, common.IsRetryable(err))
}

func TestExtractZones_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(mock.NewEngine(), DefaultOptions()).ExtractZones(ctx, testutil.GenerateFormImage(7, 400, 200),
		singlePage(zone("MRN", "MRN", 0, 0, 50, 20)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractZones_Idempotent(t *testing.T) {
	engine := &mock.Engine{Default: "Reservation Number: 55\nClinic: East"}
	form := singlePage(
		zone("Reservation Number", "ResNo", 0, 0, 200, 40),
		zone("Clinic", "ClinicName", 0, 40, 200, 40),
	)
	img := testutil.GenerateFormImage(8, 400, 200)
	ex := New(engine, DefaultOptions())

	first, err := ex.ExtractZones(context.Background(), img, form)
	require.NoError(t, err)
	second, err := ex.ExtractZones(context.Background(), img, form)
	require.NoError(t, err)
	assert.Equal(t, first.Map(), second.Map())
	assert.Equal(t, first.Keys(), second.Keys())
}

func TestExtractZones_Equalize(t *testing.T) {
	var gotGray bool
	opts := DefaultOptions()
	opts.Equalize = true
	engine := mock.NewEngine("MRN 1")
	ex := New(engine, opts)
	ex.engine = engineSpy{engine, func(img image.Image) { _, gotGray = img.(*image.Gray) }}

	_, err := ex.ExtractZones(context.Background(), testutil.GenerateFormImage(9, 400, 200),
		singlePage(zone("MRN", "MRN", 0, 0, 50, 20)))
	require.NoError(t, err)
	assert.True(t, gotGray)
}

type engineSpy struct {
	*mock.Engine
	seen func(image.Image)
}

func (s engineSpy) Recognize(ctx context.Context, img image.Image, wl string) (string, error) {
	s.seen(img)
	return s.Engine.Recognize(ctx, img, wl)
}

func TestExtractPage_KeyedByZoneName(t *testing.T) {
	page := "CLAIM FORM\nReservation Number  777\nClinic: City Center\nSignature"
	form := singlePage(
		zone("Reservation Number", "ResNo", 0, 0, 10, 10),
		zone("Clinic", "ClinicName", 0, 0, 10, 10),
		zone("MRN", "PatientMRN", 0, 0, 10, 10),
	)
	engine := mock.NewEngine(page)

	res, err := New(engine, DefaultOptions()).ExtractPage(context.Background(), testutil.GenerateFormImage(10, 300, 200), form)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"ResNo": "777", "ClinicName": ": City Center"}, res.Map())
	assert.False(t, res.Has("Reservation Number"), "whole-page values use zone names")

	calls := engine.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, image.Pt(300, 200), calls[0].Size)
	assert.Equal(t, "", calls[0].Whitelist)
}

// Zone mode and page mode key the same zone differently; both are kept.
func TestExtractModes_AsymmetricKeys(t *testing.T) {
	form := singlePage(zone("Reservation Number", "ResNo", 0, 0, 100, 40))
	img := testutil.GenerateFormImage(11, 400, 200)
	engine := &mock.Engine{Default: "Reservation Number 9"}
	ex := New(engine, DefaultOptions())

	zones, err := ex.ExtractZones(context.Background(), img, form)
	require.NoError(t, err)
	pageRes, err := ex.ExtractPage(context.Background(), img, form)
	require.NoError(t, err)

	assert.Equal(t, []string{"Reservation Number"}, zones.Keys())
	assert.Equal(t, []string{"ResNo"}, pageRes.Keys())
	assert.Equal(t, zones.Value("Reservation Number"), pageRes.Value("ResNo"))
}

func TestExtractPage_EngineError(t *testing.T) {
	ex := New(&mock.Engine{Err: errors.New("down")}, DefaultOptions())
	_, err := ex.ExtractPage(context.Background(), testutil.GenerateFormImage(12, 100, 100), singlePage())
	assert.Equal(t, common.ErrorOCREngine, common.CodeOf(err))
}

func TestExtract_NoEngine(t *testing.T) {
	_, err := New(nil, DefaultOptions()).ExtractPage(context.Background(), testutil.GenerateFormImage(13, 100, 100), singlePage())
	assert.Error(t, err)
}
