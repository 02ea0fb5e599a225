// internal/template/template_test.go
package template

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEditor(live map[string]bool) (*Editor, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC))
	n := 0
	return &Editor{
		IsLive: func(id string) bool { return live[id] },
		Clock:  clock,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}, clock
}

func sampleTemplate() *models.Template {
	return &models.Template{
		ID:       "tpl-1",
		OwnerID:  "owner-1",
		Name:     "Geography",
		Settings: models.DefaultSettings(),
		Categories: []models.Category{
			{ID: "c1", Title: "Rivers"},
			{ID: "c2", Title: "Capitals"},
		},
		Clues: []models.Clue{
			{ID: "q1", CategoryID: "c1", Points: 100, Prompt: "Longest river", Answer: "Nile", Status: models.ClueAvailable},
			{ID: "q2", CategoryID: "c1", Points: 200, Prompt: "Flows through Paris", Answer: "Seine", DailyDouble: true, Status: models.ClueAvailable},
			{ID: "q3", CategoryID: "c2", Points: 100, Prompt: "Capital of Peru", Answer: "Lima", MediaURL: "https://img/lima.png", MediaType: "image/png", Status: models.ClueAvailable},
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Check(sampleTemplate()))

	bad := sampleTemplate()
	bad.Name = " "
	bad.Categories[1].Title = ""
	bad.Clues[0].CategoryID = "nope"
	bad.Clues[1].Answer = ""
	bad.Clues[2].Points = -5

	err := Check(bad)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	paths := make([]string, len(verr.Issues))
	for i, is := range verr.Issues {
		paths[i] = is.Path
	}
	assert.ElementsMatch(t, []string{"name", "categories[1].title", "clues[0].categoryId", "clues[1].answer", "clues[2].points"}, paths)
	assert.Contains(t, err.Error(), "5 issues")
}

func TestValidateDuplicatePointsIsWarning(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Clues[1].Points = 100

	assert.NoError(t, Check(tpl))
	warnings := Warnings(tpl)
	require.Len(t, warnings, 1)
	assert.Equal(t, "clues[1].points", warnings[0].Path)
}

func TestValidateEmptyTemplate(t *testing.T) {
	tpl := sampleTemplate()
	tpl.Categories = nil
	tpl.Clues = nil
	assert.Error(t, Check(tpl))
}

func TestImportExportRoundTrip(t *testing.T) {
	orig := sampleTemplate()
	data, err := Export(orig)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\": \"Geography\"")

	now := time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC)
	n := 0
	got, err := Import(data, "owner-2", now, func() string { n++; return fmt.Sprintf("new-%d", n) })
	require.NoError(t, err)

	assert.NotEqual(t, orig.ID, got.ID)
	assert.Equal(t, "owner-2", got.OwnerID)
	assert.Equal(t, now, got.CreatedAt)

	// identical apart from ids, owner and timestamps
	require.Len(t, got.Categories, len(orig.Categories))
	require.Len(t, got.Clues, len(orig.Clues))
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Settings, got.Settings)
	for i, c := range orig.Categories {
		assert.Equal(t, c.Title, got.Categories[i].Title)
		assert.NotEqual(t, c.ID, got.Categories[i].ID)
	}
	for i, c := range orig.Clues {
		g := got.Clues[i]
		cat, ok := got.Category(g.CategoryID)
		require.True(t, ok, "clue %d lost its category", i)
		orCat, _ := orig.Category(c.CategoryID)
		assert.Equal(t, orCat.Title, cat.Title)

		g.ID, g.CategoryID = c.ID, c.CategoryID
		assert.Equal(t, c, g)
	}
	assert.NoError(t, Check(got))
}

func TestImportResetsStatusAndRejectsInvalid(t *testing.T) {
	orig := sampleTemplate()
	orig.Clues[0].Status = models.ClueAnswered
	data, err := Export(orig)
	require.NoError(t, err)

	got, err := Import(data, "o", time.Now(), func() string { return "x" + fmt.Sprint(time.Now().UnixNano()) })
	require.NoError(t, err)
	for _, c := range got.Clues {
		assert.Equal(t, models.ClueAvailable, c.Status)
	}

	_, err = Import([]byte("{not json"), "o", time.Now(), func() string { return "x" })
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	orig.Clues[0].Prompt = ""
	data, _ = Export(orig)
	_, err = Import(data, "o", time.Now(), func() string { return "x" })
	assert.True(t, errors.As(err, &verr))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "trivia-template-abc.json", ExportFilename("abc"))
}

func TestEditorRejectsLiveTemplate(t *testing.T) {
	ed, _ := newTestEditor(map[string]bool{"tpl-1": true})
	tpl := sampleTemplate()

	_, err := ed.Rename(tpl, "owner-1", "New name")
	assert.ErrorIs(t, err, ErrTemplateLive)
	_, _, err = ed.AddCategory(tpl, "owner-1", "Oceans")
	assert.ErrorIs(t, err, ErrTemplateLive)
	_, err = ed.RemoveClue(tpl, "owner-1", "q1")
	assert.ErrorIs(t, err, ErrTemplateLive)
}

func TestEditorOperations(t *testing.T) {
	ed, clock := newTestEditor(nil)
	tpl := sampleTemplate()
	clock.Advance(time.Minute)

	renamed, err := ed.Rename(tpl, "editor-9", "  World Geography ")
	require.NoError(t, err)
	assert.Equal(t, "World Geography", renamed.Name)
	assert.Equal(t, "editor-9", renamed.UpdatedBy)
	assert.Equal(t, clock.Now(), renamed.UpdatedAt)
	assert.Equal(t, "Geography", tpl.Name, "edits work on a copy")

	_, err = ed.Rename(tpl, "editor-9", "")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	withCat, catID, err := ed.AddCategory(tpl, "o", "Oceans")
	require.NoError(t, err)
	require.Len(t, withCat.Categories, 3)
	assert.Equal(t, catID, withCat.Categories[2].ID)

	withClue, clueID, err := ed.AddClue(withCat, "o", models.Clue{CategoryID: catID, Points: 300, Prompt: "Largest ocean", Answer: "Pacific", Status: models.ClueVoid})
	require.NoError(t, err)
	added, ok := withClue.Clue(clueID)
	require.True(t, ok)
	assert.Equal(t, models.ClueAvailable, added.Status)

	_, _, err = ed.AddClue(withCat, "o", models.Clue{CategoryID: "missing", Prompt: "p", Answer: "a"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	_, _, err = ed.AddClue(withCat, "o", models.Clue{CategoryID: catID, Prompt: "p"})
	assert.True(t, errors.As(err, &verr))

	recat, err := ed.RenameCategory(withClue, "o", catID, "Seas")
	require.NoError(t, err)
	cat, _ := recat.Category(catID)
	assert.Equal(t, "Seas", cat.Title)

	pts := 500
	dd := true
	updated, err := ed.UpdateClue(recat, "o", clueID, ClueUpdate{Points: &pts, DailyDouble: &dd})
	require.NoError(t, err)
	c, _ := updated.Clue(clueID)
	assert.Equal(t, 500, c.Points)
	assert.True(t, c.DailyDouble)
	assert.Equal(t, "Pacific", c.Answer)

	blank := ""
	_, err = ed.UpdateClue(updated, "o", clueID, ClueUpdate{Prompt: &blank})
	assert.True(t, errors.As(err, &verr))
	_, err = ed.UpdateClue(updated, "o", "missing", ClueUpdate{})
	assert.ErrorIs(t, err, ErrClueNotFound)

	media, err := ed.SetClueMedia(updated, "o", "q1", "https://img/nile.png", "image/png")
	require.NoError(t, err)
	q1, _ := media.Clue("q1")
	assert.Equal(t, "https://img/nile.png", q1.MediaURL)

	removed, err := ed.RemoveCategory(media, "o", "c1")
	require.NoError(t, err)
	assert.Len(t, removed.Categories, 2)
	for _, c := range removed.Clues {
		assert.NotEqual(t, "c1", c.CategoryID)
	}
	assert.Len(t, removed.Clues, 2)
	_, err = ed.RemoveCategory(removed, "o", "c1")
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	noClue, err := ed.RemoveClue(removed, "o", clueID)
	require.NoError(t, err)
	assert.Len(t, noClue.Clues, 1)
	_, err = ed.RemoveClue(noClue, "o", clueID)
	assert.ErrorIs(t, err, ErrClueNotFound)
}

func TestEditorNew(t *testing.T) {
	ed, clock := newTestEditor(nil)
	tpl, err := ed.New("owner-1", "Quiz Night", nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", tpl.ID)
	assert.Equal(t, models.DefaultSettings(), tpl.Settings)
	assert.Equal(t, clock.Now(), tpl.CreatedAt)

	_, err = ed.New("owner-1", "   ", nil)
	assert.Error(t, err)
}

func TestUpdateSettings(t *testing.T) {
	cur := models.DefaultSettings()

	next, err := UpdateSettings(cur, map[string]interface{}{"step": float64(50), "currencySymbol": "€", "timerDuration": nil})
	require.NoError(t, err)
	assert.Equal(t, 50, next.Step)
	assert.Equal(t, "€", next.CurrencySymbol)
	assert.Equal(t, cur.TimerDuration, next.TimerDuration)

	_, err = UpdateSettings(cur, map[string]interface{}{"step": "fifty"})
	assert.Error(t, err)
	_, err = UpdateSettings(cur, map[string]interface{}{"timerDuration": float64(0)})
	assert.Error(t, err)
	_, err = UpdateSettings(cur, map[string]interface{}{"maxPoints": float64(50)})
	assert.Error(t, err, "max below min")
	_, err = UpdateSettings(cur, map[string]interface{}{"step": 12.5})
	assert.Error(t, err)

	ed, _ := newTestEditor(nil)
	tpl, err := ed.UpdateSettings(sampleTemplate(), "o", map[string]interface{}{"maxPoints": float64(1000)})
	require.NoError(t, err)
	assert.Equal(t, 1000, tpl.Settings.MaxPoints)
}

func TestApplyBoardAndShape(t *testing.T) {
	board := Board{}
	for i := 0; i < 6; i++ {
		cat := BoardCategory{Title: fmt.Sprintf("Cat %d", i)}
		for j := 1; j <= 5; j++ {
			cat.Clues = append(cat.Clues, BoardClue{Points: j * 100, Prompt: "p", Answer: "a"})
		}
		board.Categories = append(board.Categories, cat)
	}
	shape := DefaultShape(models.DefaultSettings())
	require.NoError(t, board.CheckShape(shape))

	ed, _ := newTestEditor(nil)
	tpl, err := ed.ApplyBoard(sampleTemplate(), "o", board)
	require.NoError(t, err)
	assert.Len(t, tpl.Categories, 6)
	assert.Len(t, tpl.Clues, 30)
	assert.Len(t, tpl.CluesIn(tpl.Categories[0].ID), 5)

	board.Categories[0].Clues[0].Points = 9000
	board.Categories = board.Categories[:5]
	err = board.CheckShape(shape)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Issues, 2)
}

func TestProjectStatuses(t *testing.T) {
	tpl := sampleTemplate()
	s := &models.GameSession{ClueStatus: map[string]models.ClueStatus{"q1": models.ClueAnswered, "q3": models.ClueVoid}}

	projected := ProjectStatuses(tpl, s)
	q1, _ := projected.Clue("q1")
	q2, _ := projected.Clue("q2")
	q3, _ := projected.Clue("q3")
	assert.Equal(t, models.ClueAnswered, q1.Status)
	assert.Equal(t, models.ClueAvailable, q2.Status)
	assert.Equal(t, models.ClueVoid, q3.Status)

	orig, _ := tpl.Clue("q1")
	assert.Equal(t, models.ClueAvailable, orig.Status, "template is not mutated")

	reset := ResetStatuses(projected)
	for _, c := range reset.Clues {
		assert.Equal(t, models.ClueAvailable, c.Status)
	}
}
