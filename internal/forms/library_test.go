package forms

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/formflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_Templates(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	testutil.SaveImage(t, img, dir, "b_visit.png")
	testutil.SaveImage(t, img, dir, "a_claim.bmp")
	testutil.WriteFile(t, filepath.Join(dir, "a_claim.json"), claimSchemaJSON)
	testutil.WriteFile(t, filepath.Join(dir, "notes.txt"), "ignore me")

	templates, err := NewLibrary(dir).Templates()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_claim.bmp"),
		filepath.Join(dir, "b_visit.png"),
	}, templates)
}

func TestLibrary_TemplatesMissingDir(t *testing.T) {
	_, err := NewLibrary(filepath.Join(t.TempDir(), "missing")).Templates()
	assert.Error(t, err)
}

func TestLibrary_SchemaPath(t *testing.T) {
	lib := NewLibrary("/srv/forms")
	assert.Equal(t, filepath.Join("/srv/forms", "claim.json"), lib.SchemaPath("/elsewhere/claim.bmp"))
}

func TestLibrary_Load(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "claim.json"), claimSchemaJSON)
	testutil.WriteFile(t, filepath.Join(dir, "visit.yaml"), "TemplateImages:\n  - SerializableRect:\n      - Name: Clinic\n        IndexingField: Clinic\n")

	lib := NewLibrary(dir)

	form, err := lib.Load(filepath.Join(dir, "claim.bmp"))
	require.NoError(t, err)
	assert.Len(t, form.Zones(), 3)

	form, err = lib.Load(filepath.Join(dir, "visit.png"))
	require.NoError(t, err)
	assert.Equal(t, "Clinic", form.Zones()[0].IndexingField)

	_, err = lib.Load(filepath.Join(dir, "unknown.bmp"))
	require.ErrorIs(t, err, ErrTemplateSchemaNotFound)
	assert.Contains(t, err.Error(), "unknown.json")
}

func TestLibrary_LoadInvalid(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "broken.json"), "{")
	_, err := NewLibrary(dir).Load(filepath.Join(dir, "broken.bmp"))
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.NotErrorIs(t, err, ErrTemplateSchemaNotFound)
}
