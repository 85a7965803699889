// File: internal/flow/postlogin_test.go
package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSafeSenderPerformsAddWhenAbsent(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, &fakeCodes{codes: []string{"111111"}})
	page := newFakePage(targetURL)
	page.present["button.ms-Button--command"] = true
	page.present[`input[placeholder="Example: abc123@fourthcoffee.com for sender, fourthcoffee.com for domain."]`] = true
	page.present[".Xut6I button"] = true
	page.body = "Safe senders and domains"

	require.NoError(t, o.addSafeSender(context.Background(), page))

	assert.Equal(t, 1, page.clicks["button.ms-Button--command"])
	typed := page.typed[`input[placeholder="Example: abc123@fourthcoffee.com for sender, fourthcoffee.com for domain."]`]
	assert.Equal(t, []string{"customer_support@email.ticketmaster.com"}, typed)
	assert.Equal(t, 1, page.clicks[".Xut6I button"])
}

func TestAddSafeSenderIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, &fakeCodes{codes: []string{"111111"}})
	page := newFakePage(targetURL)
	page.present["button.ms-Button--command"] = true
	page.body = safeBody

	require.NoError(t, o.addSafeSender(context.Background(), page))
	require.NoError(t, o.addSafeSender(context.Background(), page))

	assert.Zero(t, page.clicks["button.ms-Button--command"],
		"an already-listed sender must not trigger the add/save sub-sequence")
	assert.Empty(t, page.typed)
}

func TestAddSafeSenderTreatsMissingSaveBarAsCommitted(t *testing.T) {
	o := newTestOrchestrator(&fakeStore{}, &fakeCodes{codes: []string{"111111"}})
	page := newFakePage(targetURL)
	page.present["button.ms-Button--command"] = true
	page.present[`input[type="text"]`] = true
	page.body = "Safe senders and domains"

	// No save control ever appears; the entry is considered committed.
	require.NoError(t, o.addSafeSender(context.Background(), page))
}

func TestFakePageMatchesCommaBearingAttributeSelector(t *testing.T) {
	page := newFakePage(targetURL)
	sender := `input[placeholder="Example: abc123@fourthcoffee.com for sender, fourthcoffee.com for domain."]`
	page.present[sender] = true
	page.present["#idTxtBx_SAOTCC_OTC"] = true

	// A comma inside an attribute value must not split the selector apart.
	ok, err := page.Exists(context.Background(), sender)
	require.NoError(t, err)
	assert.True(t, ok)

	// A candidate group still resolves per candidate, brackets included.
	ok, err = page.Exists(context.Background(), `#idTxtBx_SAOTCC_OTC, input[name="otc"]`)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = page.Exists(context.Background(), `#missing, input[name="otc"]`)
	require.NoError(t, err)
	assert.False(t, ok)
}
