package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandKind identifies a chat command.
type CommandKind string

const (
	CmdStart       CommandKind = "start"
	CmdHelp        CommandKind = "help"
	CmdBuy         CommandKind = "buy"
	CmdPrice       CommandKind = "price"
	CmdStock       CommandKind = "stock"
	CmdCancel      CommandKind = "cancel"
	CmdAdmin       CommandKind = "admin"
	CmdPending     CommandKind = "pending"
	CmdApprove     CommandKind = "approve"
	CmdReject      CommandKind = "reject"
	CmdAssign      CommandKind = "assign"
	CmdStats       CommandKind = "stats"
	CmdReport      CommandKind = "report"
	CmdMaintenance CommandKind = "maintenance"
	CmdBroadcast   CommandKind = "broadcast"
	CmdAddItem     CommandKind = "additem"
	CmdDeleteItem  CommandKind = "delitem"
	CmdSetPrice    CommandKind = "setprice"
	CmdPayments    CommandKind = "payments"
)

var knownCommands = map[CommandKind]bool{
	CmdStart: true, CmdHelp: true, CmdBuy: true, CmdPrice: true, CmdStock: true,
	CmdCancel: true, CmdAdmin: true, CmdPending: true, CmdApprove: true, CmdReject: true,
	CmdAssign: true, CmdStats: true, CmdReport: true, CmdMaintenance: true, CmdBroadcast: true,
	CmdAddItem: true, CmdDeleteItem: true, CmdSetPrice: true, CmdPayments: true,
}

// adminCommands may only be issued by operators.
var adminCommands = map[CommandKind]bool{
	CmdAdmin: true, CmdPending: true, CmdApprove: true, CmdReject: true, CmdAssign: true,
	CmdStats: true, CmdReport: true, CmdMaintenance: true, CmdBroadcast: true,
	CmdAddItem: true, CmdDeleteItem: true, CmdSetPrice: true, CmdPayments: true,
}

// Menu labels sent as plain text map onto commands.
const (
	LabelBuy   = "🛒 Buy"
	LabelPrice = "💰 Price"
	LabelStock = "📦 Stock"
	LabelHelp  = "❓ Help"
	LabelAdmin = "⚙️ Admin Panel"
)

var menuLabels = map[string]CommandKind{
	LabelBuy:   CmdBuy,
	LabelPrice: CmdPrice,
	LabelStock: CmdStock,
	LabelHelp:  CmdHelp,
	LabelAdmin: CmdAdmin,
}

// Command is a decoded chat command.
type Command struct {
	Kind CommandKind
	Args []string
}

// Arg returns the i-th argument or an empty string.
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Rest joins the arguments from i onwards.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// ParseCommand decodes "/name@bot arg..." or a menu label. Unknown commands
// and free text report false.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if kind, ok := menuLabels[text]; ok {
		return Command{Kind: kind}, true
	}
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	kind := CommandKind(strings.ToLower(name))
	if !knownCommands[kind] {
		return Command{}, false
	}
	return Command{Kind: kind, Args: fields[1:]}, true
}

// Callback actions carried in inline button data.
const (
	ActionBuyProof        = "buy:proof"
	ActionItemAdd         = "item:add"
	ActionItemDelete      = "item:delete"
	ActionItemDeleteOK    = "item:delete:ok"
	ActionItemList        = "item:list"
	ActionPaymentList     = "pm:list"
	ActionPaymentAdd      = "pm:add"
	ActionPaymentToggle   = "pm:toggle"
	ActionPaymentDelete   = "pm:delete"
	ActionPriceSet        = "price:set"
	ActionMaintenance     = "maint:toggle"
	ActionSalesReport     = "report:sales"
	ActionPendingOrders   = "orders:pending"
	ActionBroadcast       = "broadcast"
	ActionStats           = "stats"
	ActionOrderApprove    = "order:approve"
	ActionOrderReject     = "order:reject"
	ActionAdminMenu       = "admin:menu"
	callbackDataSeparator = ":"
)

// actionsWithID require a trailing numeric id.
var actionsWithID = map[string]bool{
	ActionItemDeleteOK:  true,
	ActionPaymentToggle: true,
	ActionPaymentDelete: true,
	ActionOrderApprove:  true,
	ActionOrderReject:   true,
}

var actionsWithoutID = map[string]bool{
	ActionBuyProof: true, ActionItemAdd: true, ActionItemDelete: true, ActionItemList: true,
	ActionPaymentList: true, ActionPaymentAdd: true, ActionPriceSet: true, ActionMaintenance: true,
	ActionSalesReport: true, ActionPendingOrders: true, ActionBroadcast: true, ActionStats: true,
	ActionAdminMenu: true,
}

// ErrUnknownCallback is returned for button data the bot never produced.
var ErrUnknownCallback = errors.New("unknown callback")

// Callback is decoded inline button data.
type Callback struct {
	Action string
	ID     int64
}

// Admin reports whether only operators may trigger the action.
func (c Callback) Admin() bool {
	return c.Action != ActionBuyProof
}

// CallbackData encodes an action and optional id into button data.
func CallbackData(action string, id int64) string {
	if id == 0 {
		return action
	}
	return action + callbackDataSeparator + strconv.FormatInt(id, 10)
}

// ParseCallback decodes button data produced by CallbackData.
func ParseCallback(data string) (Callback, error) {
	if actionsWithoutID[data] {
		return Callback{Action: data}, nil
	}
	cut := strings.LastIndex(data, callbackDataSeparator)
	if cut < 0 {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	action, raw := data[:cut], data[cut+1:]
	if !actionsWithID[action] {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Callback{}, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	return Callback{Action: action, ID: id}, nil
}
