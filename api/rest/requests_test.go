package rest_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitBatch(t *testing.T, r *gin.Engine, token string) string {
	t.Helper()
	w := postJSON(r, "/api/requests", map[string]interface{}{
		"character_name": "Grunty",
		"class":          "Warrior",
		"raids": []map[string]interface{}{
			{"raid": "BWL", "items": []map[string]string{
				{"item": "Maladath", "slot": "Main Hand", "priority": "High-SR"},
			}},
		},
	}, bearer(token)...)
	require.Equal(t, http.StatusCreated, w.Code)
	reqs := decodeBody(t, w)["requests"].([]interface{})
	require.Len(t, reqs, 1)
	return reqs[0].(map[string]interface{})["id"].(string)
}

func TestSubmitAndListRequests(t *testing.T) {
	r, _, memberToken, _ := newPanelSetup(t)
	submitBatch(t, r, memberToken)

	w := getReq(r, "/api/requests", bearer(memberToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	reqs := decodeBody(t, w)["requests"].([]interface{})
	require.Len(t, reqs, 1)
	row := reqs[0].(map[string]interface{})
	assert.Equal(t, "high", row["priority"])
	assert.Equal(t, "pending", row["status"])
}

func TestSubmitRequiresAuth(t *testing.T) {
	r, _, _, _ := newPanelSetup(t)
	w := postJSON(r, "/api/requests", map[string]interface{}{"character_name": "X"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitHardReserveConflict(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)

	w := postJSON(r, "/api/reserves", map[string]string{"item_name": "Maladath"}, bearer(officerToken)...)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(r, "/api/requests", map[string]interface{}{
		"character_name": "Grunty",
		"class":          "Warrior",
		"raids": []map[string]interface{}{
			{"raid": "BWL", "items": []map[string]string{
				{"item": "maladath", "slot": "Main Hand", "priority": "low"},
			}},
		},
	}, bearer(memberToken)...)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "hard_reserve_conflict", resp["reason"])
	assert.Equal(t, "maladath", resp["item"])

	w = getReq(r, "/api/requests", bearer(memberToken)...)
	assert.Empty(t, decodeBody(t, w)["requests"], "conflict persists nothing")
}

func TestAnonymousSeesOnlyDecided(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)
	pendingID := submitBatch(t, r, memberToken)

	w := getReq(r, "/api/requests")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody(t, w)["requests"])
	assert.Equal(t, http.StatusNotFound, getReq(r, "/api/requests/"+pendingID).Code)

	w = postJSON(r, "/api/requests/"+pendingID+"/decide",
		map[string]string{"status": "approved"}, bearer(officerToken)...)
	require.Equal(t, http.StatusOK, w.Code)

	w = getReq(r, "/api/requests")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["requests"], 1)
	assert.Equal(t, http.StatusOK, getReq(r, "/api/requests/"+pendingID).Code)
}

func TestDecideOfficerOnly(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)
	id := submitBatch(t, r, memberToken)

	w := postJSON(r, "/api/requests/"+id+"/decide",
		map[string]string{"status": "approved"}, bearer(memberToken)...)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postJSON(r, "/api/requests/"+id+"/decide",
		map[string]string{"status": "approved"}, bearer(officerToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "approved", resp["status"])
	assert.Equal(t, "thrall", resp["reviewed_by"])
}

func TestLockBlocksDecision(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)
	id := submitBatch(t, r, memberToken)

	w := postJSON(r, "/api/requests/"+id+"/lock", nil, bearer(officerToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["locked"])

	w = postJSON(r, "/api/requests/"+id+"/decide",
		map[string]string{"status": "approved"}, bearer(officerToken)...)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unlock and the decision goes through.
	require.Equal(t, http.StatusOK,
		postJSON(r, "/api/requests/"+id+"/lock", nil, bearer(officerToken)...).Code)
	w = postJSON(r, "/api/requests/"+id+"/decide",
		map[string]string{"status": "rejected"}, bearer(officerToken)...)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResubmitFlow(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)
	id := submitBatch(t, r, memberToken)

	require.Equal(t, http.StatusOK, postJSON(r, "/api/requests/"+id+"/decide",
		map[string]string{"status": "rejected"}, bearer(officerToken)...).Code)

	// Member tunes the priority after the decision, then resubmits.
	w := patchJSON(r, "/api/requests/"+id,
		map[string]string{"field": "priority", "value": "Medium-MS"}, bearer(memberToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "medium", decodeBody(t, w)["priority"])

	w = postJSON(r, "/api/requests/"+id+"/resubmit", nil, bearer(memberToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "pending", resp["status"])
	assert.Nil(t, resp["reviewed_by"])
}

func TestEditPendingPriorityDenied(t *testing.T) {
	r, _, memberToken, _ := newPanelSetup(t)
	id := submitBatch(t, r, memberToken)

	w := patchJSON(r, "/api/requests/"+id,
		map[string]string{"field": "priority", "value": "low"}, bearer(memberToken)...)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOfficerEditAndDelete(t *testing.T) {
	r, _, memberToken, officerToken := newPanelSetup(t)
	id := submitBatch(t, r, memberToken)

	w := patchJSON(r, "/api/requests/"+id,
		map[string]string{"field": "admin_note", "value": "duplicate of last week"}, bearer(officerToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "duplicate of last week", decodeBody(t, w)["admin_note"])

	assert.Equal(t, http.StatusForbidden,
		deleteReq(r, "/api/requests/"+id, bearer(memberToken)...).Code)
	require.Equal(t, http.StatusOK,
		deleteReq(r, "/api/requests/"+id, bearer(officerToken)...).Code)
	assert.Equal(t, http.StatusNotFound,
		getReq(r, "/api/requests/"+id, bearer(officerToken)...).Code)
}

func TestMineGroupsBatches(t *testing.T) {
	r, _, memberToken, _ := newPanelSetup(t)

	w := postJSON(r, "/api/requests", map[string]interface{}{
		"character_name": "Grunty",
		"class":          "Warrior",
		"raids": []map[string]interface{}{
			{"raid": "BWL", "items": []map[string]string{
				{"item": "Maladath", "slot": "Main Hand", "priority": "low"},
				{"item": "Ashkandi", "slot": "Main Hand", "priority": "high"},
			}},
		},
	}, bearer(memberToken)...)
	require.Equal(t, http.StatusCreated, w.Code)

	w = getReq(r, "/api/requests/mine", bearer(memberToken)...)
	require.Equal(t, http.StatusOK, w.Code)
	batches := decodeBody(t, w)["batches"].([]interface{})
	require.Len(t, batches, 1)
	batch := batches[0].(map[string]interface{})
	assert.Equal(t, "Pending", batch["status"])
	assert.Len(t, batch["requests"], 2)
}
