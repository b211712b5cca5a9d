package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-conflict-mcp-server/internal/domain"
	"github.com/drug-conflict-mcp-server/internal/service"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func writeRules(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.csv")
	require.NoError(t, os.WriteFile(path, []byte("type,item_a,item_b,severity,recommendation\n"+body), 0644))
	return path
}

func TestLoadRules(t *testing.T) {
	t.Run("Valid_Rows", func(t *testing.T) {
		path := writeRules(t, "drug-drug,Aspirin,Warfarin,Major,Avoid\ndrugdrug,Aspirin,Heparin,Major,Avoid\n")
		records, err := loadRules(path, testLogger())
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("All_Rows_Rejected", func(t *testing.T) {
		path := writeRules(t, "drugdrug,Aspirin,Warfarin,Severe,Avoid\n")
		_, err := loadRules(path, testLogger())
		assert.ErrorIs(t, err, domain.ErrNoValidRules)
	})

	t.Run("Missing_File", func(t *testing.T) {
		_, err := loadRules(filepath.Join(t.TempDir(), "absent.csv"), testLogger())
		assert.Error(t, err)
	})
}

func TestReloadRules(t *testing.T) {
	records := []domain.RuleRecord{
		{Type: "drug-drug", ItemA: "Aspirin", ItemB: "Warfarin", Severity: "Major", Recommendation: "Avoid"},
	}

	t.Run("Rejected_File_Keeps_Current_Rules", func(t *testing.T) {
		engine := service.NewRuleEngine(records, nil, testLogger())
		generation := engine.KnowledgeBase().Generation()

		reloadRules(engine, writeRules(t, "drugdrug,Aspirin,Heparin,Severe,Avoid\n"), testLogger())

		assert.Equal(t, generation, engine.KnowledgeBase().Generation())
		assert.Equal(t, 1, engine.KnowledgeBase().Len())
		assert.Len(t, engine.Check(context.Background(), []string{"Aspirin", "Warfarin"}, nil), 1)
	})

	t.Run("Valid_File_Publishes", func(t *testing.T) {
		engine := service.NewRuleEngine(records, nil, testLogger())
		generation := engine.KnowledgeBase().Generation()

		reloadRules(engine, writeRules(t, "drug-drug,Aspirin,Heparin,Major,Avoid\ndrug-drug,Ibuprofen,Warfarin,Moderate,Monitor\n"), testLogger())

		assert.NotEqual(t, generation, engine.KnowledgeBase().Generation())
		assert.Equal(t, 2, engine.KnowledgeBase().Len())
	})
}
