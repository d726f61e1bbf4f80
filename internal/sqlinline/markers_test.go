package sqlinline

import (
	"regexp"
	"strings"
	"testing"
)

var markerLine = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestQueriesCarryUniqueMarkers(t *testing.T) {
	queries := map[string]string{
		"QSelectUnit":               QSelectUnit,
		"QSelectUnitByParent":       QSelectUnitByParent,
		"QSelectProjectUnits":       QSelectProjectUnits,
		"QInsertUnit":               QInsertUnit,
		"QEnsureUnit":               QEnsureUnit,
		"QTransitionUnit":           QTransitionUnit,
		"QExpireGeneratingUnits":    QExpireGeneratingUnits,
		"QDeleteBreakdownUnits":     QDeleteBreakdownUnits,
		"QInsertProject":            QInsertProject,
		"QSelectProject":            QSelectProject,
		"QInsertStoryline":          QInsertStoryline,
		"QSelectStorylines":         QSelectStorylines,
		"QSelectSelectedStoryline":  QSelectSelectedStoryline,
		"QClearSelectedStoryline":   QClearSelectedStoryline,
		"QMarkSelectedStoryline":    QMarkSelectedStoryline,
		"QDeleteProjectShots":       QDeleteProjectShots,
		"QDeleteProjectScenes":      QDeleteProjectScenes,
		"QDeleteProjectCharacters":  QDeleteProjectCharacters,
		"QInsertScene":              QInsertScene,
		"QSelectScenes":             QSelectScenes,
		"QSelectScene":              QSelectScene,
		"QLockScene":                QLockScene,
		"QInsertCharacter":          QInsertCharacter,
		"QSelectCharacters":         QSelectCharacters,
		"QSelectCharacter":          QSelectCharacter,
		"QCountSceneShots":          QCountSceneShots,
		"QInsertShot":               QInsertShot,
		"QSelectProjectShots":       QSelectProjectShots,
		"QSelectSceneShots":         QSelectSceneShots,
		"QSelectShot":               QSelectShot,
		"QUpdateShotPrompt":         QUpdateShotPrompt,
		"QDebitCredits":             QDebitCredits,
		"QGrantCredits":             QGrantCredits,
		"QRefundCredits":            QRefundCredits,
		"QSelectCreditAccount":      QSelectCreditAccount,
		"QSelectCreditTransactions": QSelectCreditTransactions,
		"QSumCreditTransactions":    QSumCreditTransactions,
		"QInsertJob":                QInsertJob,
		"QClaimJob":                 QClaimJob,
		"QCompleteJob":              QCompleteJob,
		"QFailJob":                  QFailJob,
		"QSelectJob":                QSelectJob,
		"QSelectOpenJobByKey":       QSelectOpenJobByKey,
		"QExtendJobLease":           QExtendJobLease,
		"QNotifyChange":             QNotifyChange,
		"QSelectIntegrationToken":   QSelectIntegrationToken,
		"QUpsertIntegrationToken":   QUpsertIntegrationToken,
	}

	seen := make(map[string]string, len(queries))
	for name, query := range queries {
		first := strings.TrimSpace(strings.SplitN(strings.TrimSpace(query), "\n", 2)[0])
		if !markerLine.MatchString(first) {
			t.Fatalf("%s: first line %q is not a valid marker", name, first)
		}
		if other, ok := seen[first]; ok {
			t.Fatalf("%s reuses the marker of %s", name, other)
		}
		seen[first] = name
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"generation_units", "credit_accounts", "credit_transactions", "jobs", "storylines"} {
		if !strings.Contains(Schema, "create table if not exists "+table) {
			t.Fatalf("schema is missing table %s", table)
		}
	}
}
