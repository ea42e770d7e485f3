// Package tui renders one screen per session step. It only observes the
// session store; every user action is forwarded to a store handler.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/walletchat/wchat/chat/app/sdk/session"
)

// Admin defines the destructive operations reachable from the chat screen.
// May be nil when the deployment hides them.
type Admin interface {
	DeleteAllUsers(ctx context.Context) error
	DeleteAllMessages(ctx context.Context) error
}

type TUI struct {
	store *session.Store
	admin Admin

	tviewApp *tview.Application
	pages    *tview.Pages
	status   *tview.TextView

	addressField *tview.InputField
	registerForm *tview.Form

	list     *tview.List
	textView *tview.TextView
	textArea *tview.TextArea
	balances *tview.TextView
}

// New constructs the full screen set and subscribes to store changes.
func New(store *session.Store, admin Admin) *TUI {
	ui := TUI{
		store: store,
		admin: admin,
	}

	ui.tviewApp = tview.NewApplication()
	ui.pages = tview.NewPages()

	ui.status = tview.NewTextView()
	ui.status.SetDynamicColors(true)
	ui.status.SetBorder(true)
	ui.status.SetTitle("Notices")

	ui.pages.AddPage("connect", ui.buildConnect(), true, true)
	ui.pages.AddPage("chooseAuth", ui.buildChooseAuth(), true, false)
	ui.pages.AddPage("register", ui.buildRegister(), true, false)
	ui.pages.AddPage("login", ui.buildLogin(), true, false)
	ui.pages.AddPage("chat", ui.buildChat(), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.status, 4, 0, false)

	ui.tviewApp.SetRoot(root, true).EnableMouse(true)

	ui.tviewApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlQ:
			ui.tviewApp.Stop()
			return nil
		}
		return event
	})

	store.OnChange(func() {
		go ui.tviewApp.QueueUpdateDraw(ui.render)
	})

	return &ui
}

// Run starts the terminal application.
func (ui *TUI) Run() error {
	ui.render()
	return ui.tviewApp.Run()
}

// =============================================================================
// Screens.

func (ui *TUI) buildConnect() tview.Primitive {
	ui.addressField = tview.NewInputField().
		SetLabel("Wallet address: ").
		SetFieldWidth(44)

	form := tview.NewForm().
		AddButton("Connect Wallet", func() {
			go ui.store.ConnectWallet(context.Background())
		}).
		AddFormItem(ui.addressField).
		AddButton("Link Address Manually", func() {
			addr := ui.addressField.GetText()
			go ui.store.LinkManual(addr)
		})

	form.SetBorder(true)
	form.SetTitle("Link your wallet")

	return center(form, 60, 11)
}

func (ui *TUI) buildChooseAuth() tview.Primitive {
	form := tview.NewForm().
		AddButton("Register", func() {
			ui.store.ChooseRegister()
		}).
		AddButton("Login", func() {
			ui.store.ChooseLogin()
		}).
		AddButton("Disconnect Wallet", func() {
			go ui.store.Disconnect(context.Background())
		})

	form.SetBorder(true)
	form.SetTitle("Wallet linked")

	return center(form, 60, 7)
}

func (ui *TUI) buildRegister() tview.Primitive {
	form := tview.NewForm()

	fields := []struct {
		label string
		field string
	}{
		{"Username", "username"},
		{"Password", "password"},
		{"Email", "email"},
		{"Phone", "phone"},
		{"Date of birth (YYYY-MM-DD)", "dob"},
		{"Wallet address", "walletAddress"},
	}

	for _, f := range fields {
		form.AddInputField(f.label, "", 44, nil, func(text string) {
			ui.store.SetFormField(f.field, text)
		})
	}

	form.AddButton("Submit", func() {
		go func() {
			if fields := ui.store.SubmitRegistration(context.Background()); len(fields) > 0 {
				ui.showFieldErrors(fields)
			}
		}()
	})
	form.AddButton("Back", func() {
		ui.store.BackToChooseAuth()
	})

	form.SetBorder(true)
	form.SetTitle("Register")

	ui.registerForm = form

	return center(form, 70, 19)
}

func (ui *TUI) buildLogin() tview.Primitive {
	form := tview.NewForm().
		AddInputField("Username", "", 44, nil, func(text string) {
			ui.store.SetFormField("username", text)
		}).
		AddPasswordField("Password", "", 44, '*', func(text string) {
			ui.store.SetFormField("password", text)
		})

	form.AddButton("Login", func() {
		go func() {
			if fields := ui.store.SubmitLogin(context.Background()); len(fields) > 0 {
				ui.showFieldErrors(fields)
			}
		}()
	})
	form.AddButton("Back", func() {
		ui.store.BackToChooseAuth()
	})

	form.SetBorder(true)
	form.SetTitle("Login")

	return center(form, 70, 11)
}

func (ui *TUI) buildChat() tview.Primitive {
	ui.textView = tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetWordWrap(true).
		SetChangedFunc(func() {
			ui.tviewApp.Draw()
		})
	ui.textView.SetBorder(true)

	ui.list = tview.NewList()
	ui.list.SetBorder(true)
	ui.list.SetTitle("Users")
	ui.list.SetChangedFunc(func(idx int, name string, id string, shortcut rune) {
		go ui.store.OpenThread(context.Background(), name)
	})

	ui.balances = tview.NewTextView()
	ui.balances.SetBorder(true)
	ui.balances.SetTitle("Balances")

	button := tview.NewButton("SUBMIT")
	button.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorGreen).Bold(true))
	button.SetActivatedStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorGreen).Bold(true))
	button.SetBorder(true)
	button.SetBorderColor(tcell.ColorGreen)
	button.SetSelectedFunc(ui.sendHandler)

	ui.textArea = tview.NewTextArea()
	ui.textArea.SetWrap(false)
	ui.textArea.SetPlaceholder("Enter message here...")
	ui.textArea.SetBorder(true)
	ui.textArea.SetBorderPadding(0, 0, 1, 0)
	ui.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter:
			ui.sendHandler()
			return nil
		}
		return event
	})

	actions := tview.NewForm().
		AddButton("Refresh", func() {
			go ui.store.RefreshUsers(context.Background())
			ui.store.RefreshBalances(context.Background())
		}).
		AddButton("Switch Account", func() {
			ui.store.SwitchAccount()
		}).
		AddButton("Logout", func() {
			go ui.store.Disconnect(context.Background())
		}).
		AddButton("Wipe Data", func() {
			ui.confirmWipe()
		})

	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.list, 0, 3, false).
		AddItem(ui.balances, 0, 1, false)

	flex := tview.NewFlex().
		AddItem(left, 26, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(ui.textView, 0, 5, false).
			AddItem(tview.NewFlex().
				SetDirection(tview.FlexColumn).
				AddItem(ui.textArea, 0, 90, false).
				AddItem(button, 0, 10, false),
				0, 1, false).
			AddItem(actions, 3, 0, false),
			0, 1, false)

	return flex
}

// =============================================================================
// Rendering.

func (ui *TUI) render() {
	step := ui.store.Step()
	ui.pages.SwitchToPage(step.String())

	ui.renderNotices()

	if step == session.StepRegister {
		ui.syncRegisterForm()
		return
	}

	if step != session.StepChat {
		return
	}

	if rec, ok := ui.store.Auth(); ok && rec.User != nil {
		ui.textView.SetTitle(fmt.Sprintf("*** %s (%s) ***", rec.User.Username, rec.WalletAddress.Hex()))
	}

	ui.renderUsers()
	ui.renderThread()
	ui.renderBalances()
}

// syncRegisterForm pushes the prefilled wallet address into the register
// screen. The guard on the current text keeps the change callback from
// re-triggering a render.
func (ui *TUI) syncRegisterForm() {
	form := ui.store.Form()

	field := ui.registerForm.GetFormItem(5).(*tview.InputField)
	if field.GetText() != form.WalletAddress {
		field.SetText(form.WalletAddress)
	}
}

func (ui *TUI) renderNotices() {
	notices := ui.store.Notices()

	ui.status.Clear()
	for _, n := range notices {
		fmt.Fprintln(ui.status, n.Text)
	}
}

func (ui *TUI) renderUsers() {
	rec, _ := ui.store.Auth()

	current := ui.selectedUser()

	ui.list.Clear()
	for i, usr := range ui.store.Users() {
		if rec.User != nil && usr.Username == rec.User.Username {
			continue
		}

		shortcut := rune(i + 49)
		ui.list.AddItem(usr.Username, usr.WalletAddress, shortcut, nil)

		if usr.Username == current {
			ui.list.SetCurrentItem(ui.list.GetItemCount() - 1)
		}
	}
}

func (ui *TUI) renderThread() {
	ui.textView.Clear()
	ui.textView.ScrollToEnd()

	rec, _ := ui.store.Auth()
	self := ""
	if rec.User != nil {
		self = rec.User.Username
	}

	thread := ui.store.Thread()
	for i, msg := range thread {
		name := msg.Sender
		if msg.Sender == self {
			name = "You"
		}
		fmt.Fprintf(ui.textView, "%s: %s\n", name, msg.Text)
		if i < len(thread)-1 {
			fmt.Fprintln(ui.textView, "-----")
		}
	}
}

func (ui *TUI) renderBalances() {
	set := ui.store.Balances()

	symbols := make([]string, 0, len(set))
	for sym := range set {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	ui.balances.Clear()
	for _, sym := range symbols {
		fmt.Fprintf(ui.balances, "%s: %s\n", sym, set[sym])
	}
}

// =============================================================================

func (ui *TUI) sendHandler() {
	msg := strings.TrimSpace(ui.textArea.GetText())
	if msg == "" {
		return
	}

	ui.textArea.SetText("", false)

	go ui.store.Send(context.Background(), msg)
}

func (ui *TUI) selectedUser() string {
	if ui.list.GetItemCount() == 0 {
		return ""
	}

	name, _ := ui.list.GetItemText(ui.list.GetCurrentItem())
	return name
}

func (ui *TUI) showFieldErrors(fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	go ui.tviewApp.QueueUpdateDraw(func() {
		ui.status.Clear()
		for _, name := range names {
			fmt.Fprintf(ui.status, "%s: %s\n", name, fields[name])
		}
	})
}

// confirmWipe requires an explicit confirmation before the destructive
// admin operations are dispatched.
func (ui *TUI) confirmWipe() {
	if ui.admin == nil {
		return
	}

	modal := tview.NewModal().
		SetText("Delete ALL users and ALL messages on the backend? This cannot be undone.").
		AddButtons([]string{"Cancel", "Delete Everything"})

	modal.SetDoneFunc(func(idx int, label string) {
		ui.pages.RemovePage("confirm")

		if label != "Delete Everything" {
			return
		}

		go func() {
			ctx := context.Background()
			ui.admin.DeleteAllMessages(ctx)
			ui.admin.DeleteAllUsers(ctx)
			ui.store.RefreshUsers(ctx)
		}()
	})

	ui.pages.AddPage("confirm", modal, true, true)
}

func center(p tview.Primitive, width int, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false),
			width, 0, true).
		AddItem(nil, 0, 1, false)
}
