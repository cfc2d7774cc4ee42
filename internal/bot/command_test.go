package bot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		text string
		ok   bool
		want Command
	}{
		{text: "/start", ok: true, want: Command{Kind: CmdStart, Args: []string{}}},
		{text: "  /approve 12 ", ok: true, want: Command{Kind: CmdApprove, Args: []string{"12"}}},
		{text: "/reject@store_bot 7 fake receipt", ok: true, want: Command{Kind: CmdReject, Args: []string{"7", "fake", "receipt"}}},
		{text: "/ASSIGN 3 9", ok: true, want: Command{Kind: CmdAssign, Args: []string{"3", "9"}}},
		{text: LabelBuy, ok: true, want: Command{Kind: CmdBuy}},
		{text: LabelAdmin, ok: true, want: Command{Kind: CmdAdmin}},
		{text: "/unknown", ok: false},
		{text: "hello", ok: false},
		{text: "", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := ParseCommand(tc.text)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestCommandArgs(t *testing.T) {
	cmd, ok := ParseCommand("/reject 7 fake receipt")
	require.True(t, ok)
	assert.Equal(t, "7", cmd.Arg(0))
	assert.Equal(t, "", cmd.Arg(5))
	assert.Equal(t, "fake receipt", cmd.Rest(1))
	assert.Equal(t, "", cmd.Rest(3))
}

func TestAdminCommandsAreKnown(t *testing.T) {
	for kind := range adminCommands {
		assert.True(t, knownCommands[kind], "admin command %s must be known", kind)
	}
	assert.False(t, adminCommands[CmdBuy])
	assert.False(t, adminCommands[CmdCancel])
}

func TestParseCallback(t *testing.T) {
	cases := []struct {
		data string
		want Callback
	}{
		{data: "buy:proof", want: Callback{Action: ActionBuyProof}},
		{data: "item:delete", want: Callback{Action: ActionItemDelete}},
		{data: "item:delete:ok:15", want: Callback{Action: ActionItemDeleteOK, ID: 15}},
		{data: "pm:toggle:2", want: Callback{Action: ActionPaymentToggle, ID: 2}},
		{data: "order:approve:99", want: Callback{Action: ActionOrderApprove, ID: 99}},
		{data: "maint:toggle", want: Callback{Action: ActionMaintenance}},
	}
	for _, tc := range cases {
		t.Run(tc.data, func(t *testing.T) {
			got, err := ParseCallback(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.data, CallbackData(got.Action, got.ID))
		})
	}
}

func TestParseCallbackRejectsUnknown(t *testing.T) {
	for _, data := range []string{"", "nope", "order:approve", "order:approve:x", "order:approve:-1", "buy:proof:3", "item:list:1"} {
		_, err := ParseCallback(data)
		assert.True(t, errors.Is(err, ErrUnknownCallback), "data %q", data)
	}
}

func TestCallbackAdmin(t *testing.T) {
	assert.False(t, Callback{Action: ActionBuyProof}.Admin())
	assert.True(t, Callback{Action: ActionOrderApprove, ID: 1}.Admin())
}
