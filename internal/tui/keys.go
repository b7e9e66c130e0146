package tui

const (
	keySubmit    = "enter"
	keyClear     = "ctrl+l"
	keyExport    = "ctrl+s"
	keyNextModel = "tab"
	keyWarmer    = "ctrl+up"
	keyCooler    = "ctrl+down"
	keyQuit      = "ctrl+c"
	keyEsc       = "esc"
)

const helpLine = "enter send • ctrl+l clear • ctrl+s export • tab model • ctrl+↑/↓ creativity • ctrl+c quit"
