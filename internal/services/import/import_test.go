package importservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/export"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/presets"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/testutil"
)

const nightExport = `{
  "version": "1.0",
  "presets": [
    {"name": "Night", "scope": "local", "tags": ["a", "a", "b"],
     "payload": {"loop": false, "steps": [{"kind": "blackout"}]}}
  ]
}`

func TestImportPresets_Create(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ps := pubsub.New()
	sub := ps.Subscribe(pubsub.TopicPresetUpdated, "", 4)

	svc := NewService(testDB.PresetRepo, ps)
	stats, warnings, err := svc.ImportPresets(context.Background(), nightExport, ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, stats.Created)
	assert.Len(t, sub.Channel, 1)

	row, err := testDB.PresetRepo.FindByName(context.Background(), "Night", "local")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, `["a","b"]`, row.Tags)
	assert.Equal(t, `{"loop":false,"steps":[{"kind":"blackout"}]}`, row.Payload)
	assert.Equal(t, 1, row.Version)
}

func TestImportPresets_ConflictStrategies(t *testing.T) {
	tests := []struct {
		strategy ConflictStrategy
		want     ImportStats
		names    []string
	}{
		{ConflictSkip, ImportStats{Skipped: 1}, []string{"Night"}},
		{ConflictReplace, ImportStats{Replaced: 1}, []string{"Night"}},
		{ConflictRename, ImportStats{Created: 1, Renamed: 1}, []string{"Night", "Night (2)"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			testDB, cleanup := testutil.SetupTestDB(t)
			defer cleanup()
			ctx := context.Background()

			require.NoError(t, testDB.PresetRepo.Create(ctx, &models.Preset{
				Name: "Night", Scope: "local", Tags: "[]", Version: 4, Payload: `{"steps":[]}`,
			}))

			svc := NewService(testDB.PresetRepo, nil)
			stats, _, err := svc.ImportPresets(ctx, nightExport, ImportOptions{ConflictStrategy: tt.strategy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, *stats)

			rows, err := testDB.PresetRepo.FindAll(ctx)
			require.NoError(t, err)
			var names []string
			for _, r := range rows {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.names, names)

			if tt.strategy == ConflictReplace {
				assert.Equal(t, 5, rows[0].Version)
				assert.Contains(t, rows[0].Payload, "blackout")
			}
		})
	}
}

func TestImportPresets_Warnings(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	content := `[
	  {"name": "", "payload": {"steps": []}},
	  {"name": "Broken", "payload": "text"},
	  {"name": "Raw", "scope": "galaxy", "payload": {"steps": {"kind": "look"}}}
	]`
	svc := NewService(testDB.PresetRepo, nil)
	stats, warnings, err := svc.ImportPresets(context.Background(), content, ImportOptions{ConflictStrategy: ConflictRename})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 1, stats.Created)
	require.Len(t, warnings, 4)
	assert.Equal(t, "Preset 1: missing name; skipped", warnings[0])
	assert.Equal(t, `Preset "Broken": payload is not a JSON object; skipped`, warnings[1])
	assert.Contains(t, warnings[2], "does not decompile")
	assert.Equal(t, `Preset "Raw": unknown scope "galaxy" imported as local`, warnings[3])

	row, err := testDB.PresetRepo.FindByName(context.Background(), "Raw", "local")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, `{"steps":{"kind":"look"}}`, row.Payload)
}

type emptyCatalog struct{}

func (emptyCatalog) Snapshot() orch.Catalog { return orch.Catalog{} }

func TestImportPresets_NonPlaylistPayloadStaysReadable(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	content := `[{"name":"Raw","scope":"local","payload":{"steps":{"custom":1}}}]`
	stats, warnings, err := NewService(testDB.PresetRepo, nil).ImportPresets(ctx, content, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "stored as-is")

	store := presets.NewService(testDB.PresetRepo, emptyCatalog{}, nil)
	list, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].RawMode())
	assert.JSONEq(t, `{"steps":{"custom":1}}`, string(list[0].Raw))

	got, err := store.Get(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, got.RawMode())

	draft, err := store.Load(ctx, list[0].ID)
	require.NoError(t, err)
	assert.True(t, draft.RawMode)
	assert.Nil(t, draft.Playlist)
	assert.Contains(t, draft.RawJSON, `"custom": 1`)
	assert.Equal(t, orch.ScopeLocal, draft.Scope)
}

func TestImportPresets_RoundTripsExport(t *testing.T) {
	source, cleanupSource := testutil.SetupTestDB(t)
	defer cleanupSource()
	ctx := context.Background()
	require.NoError(t, source.PresetRepo.Create(ctx, &models.Preset{
		Name: "Fleet show", Scope: "fleet", Tags: `["x"]`, Version: 2,
		Payload: `{"loop":true,"steps":[{"kind":"sequence","sequence_file":"show.fseq","loop":true}],"targets":null,"include_self":true}`,
	}))
	exported, _, err := export.NewService(source.PresetRepo, "").ExportPresets(ctx, export.ExportOptions{})
	require.NoError(t, err)
	text, err := exported.ToJSON()
	require.NoError(t, err)

	target, cleanupTarget := testutil.SetupTestDB(t)
	defer cleanupTarget()
	stats, warnings, err := NewService(target.PresetRepo, nil).ImportPresets(ctx, text, ImportOptions{})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, stats.Created)

	row, err := target.PresetRepo.FindByName(ctx, "Fleet show", "fleet")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 2, row.Version)
	assert.JSONEq(t, `{"loop":true,"steps":[{"kind":"sequence","sequence_file":"show.fseq","loop":true}],"targets":null,"include_self":true}`, row.Payload)
}

func TestImportPresets_Errors(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	svc := NewService(testDB.PresetRepo, nil)

	_, _, err := svc.ImportPresets(context.Background(), nightExport, ImportOptions{ConflictStrategy: "MERGE"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, _, err = svc.ImportPresets(context.Background(), `{{`, ImportOptions{})
	assert.Error(t, err)
}
