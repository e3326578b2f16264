package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/idro/idro/internal/geocode"
	"github.com/idro/idro/internal/models"
	"github.com/idro/idro/internal/poller"
	"github.com/idro/idro/internal/services/missions"
	"github.com/idro/idro/internal/util"
	impactview "github.com/idro/idro/internal/tui/views/impact"
	missionview "github.com/idro/idro/internal/tui/views/missions"
)

// Version is the console version shown in the header.
var Version = "0.1.0"

// MaxContentWidth caps the content area on very wide terminals.
const MaxContentWidth = 140

// MissionUnavailable is shown whenever an assignment attempt fails.
const MissionUnavailable = "Mission unavailable."

const (
	defaultTimeout = 10 * time.Second
	impactTimeout  = 30 * time.Second
	maxNotices     = 10
)

// SnapshotSource is the disaster cache the console renders.
type SnapshotSource interface {
	Subscribe() (<-chan poller.Snapshot, func())
	Snapshot() poller.Snapshot
	Select(id string)
	RefreshNow()
}

// MissionAccepter claims missions for the responder. Reconcile receives
// every freshly synced alert list.
type MissionAccepter interface {
	Accept(ctx context.Context, d models.Disaster, responder string, c missions.Confirmer) (*models.Disaster, error)
	Reconcile(ds []models.Disaster)
}

// MissionResolver closes missions held by the responder.
type MissionResolver interface {
	ResolveMission(ctx context.Context, id string) (*models.Disaster, error)
}

// ImpactBuilder produces the disaster-level demand summary.
type ImpactBuilder interface {
	Build(ctx context.Context, d models.Disaster, camps []models.Camp) (models.ImpactSummary, error)
}

// StatsSource provides the header counters.
type StatsSource interface {
	GetStats(ctx context.Context) (*models.DashboardStats, error)
}

// LocationResolver turns placeholder locations into place names.
type LocationResolver interface {
	DisplayLocation(ctx context.Context, location string, lat, lng float64) string
}

// Deps wires the console to the engine. Locations and Stats are optional.
type Deps struct {
	Snapshots SnapshotSource
	Assigner  MissionAccepter
	Resolver  MissionResolver
	Impact    ImpactBuilder
	Stats     StatsSource
	Locations LocationResolver
	Responder string
	Timeout   time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

// Screen identifies the active console screen.
type Screen string

const (
	ScreenBoard  Screen = "board"
	ScreenDetail Screen = "detail"
	ScreenImpact Screen = "impact"
	ScreenHelp   Screen = "help"
)

// Notice is a message shown in the notice bar.
type Notice struct {
	Level   NoticeLevel
	Message string
	Time    time.Time
}

// NoticeLevel is the severity of a notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeCritical
)

// pendingDeploy is a low-trust mission waiting for the operator's answer.
type pendingDeploy struct {
	mission models.Disaster
	prompt  string
}

// App is the main bubbletea model of the responder console.
type App struct {
	deps   Deps
	ctx    context.Context
	logger *slog.Logger
	theme  *Theme
	keys   KeyMap

	width  int
	height int
	ready  bool

	screen     Screen
	prevScreen Screen
	board      *missionview.BoardView
	summary    *impactview.SummaryView
	detail     models.Disaster
	impactID   string

	snapshots   <-chan poller.Snapshot
	unsubscribe func()
	syncedAt    time.Time
	stats       *models.DashboardStats
	geocoding   map[string]bool

	notices  []Notice
	deploy   *pendingDeploy
	busy     bool
	quitting bool

	showConfirm bool
}

// Messages produced by console commands.
type (
	tickMsg     time.Time
	snapshotMsg struct {
		snapshot poller.Snapshot
		ok       bool
		initial  bool
	}
	statsMsg struct {
		stats *models.DashboardStats
		err   error
	}
	locationMsg struct {
		id      string
		display string
	}
	acceptedMsg struct {
		mission models.Disaster
		result  *models.Disaster
		err     error
	}
	resolvedMsg struct {
		mission models.Disaster
		err     error
	}
	impactMsg struct {
		id      string
		summary models.ImpactSummary
		err     error
	}
)

// New creates the console model.
func New(deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	theme := NewTheme()
	board := missionview.NewBoardView(deps.Responder, theme.BoardStyles())
	board.SetClock(deps.Now)
	board.Table().SetStyles(theme.TableHeader, theme.TableRow, theme.TableRowAlt, theme.Selected, theme.Muted)
	board.Filter().SetStyles(theme.Title, theme.Value, theme.Muted)

	return &App{
		deps:      deps,
		ctx:       context.Background(),
		logger:    deps.Logger,
		theme:     theme,
		keys:      DefaultKeyMap(),
		screen:    ScreenBoard,
		board:     board,
		summary:   impactview.NewSummaryView(theme.SummaryStyles()),
		geocoding: make(map[string]bool),
		notices:   []Notice{},
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.snapshots, a.unsubscribe = a.deps.Snapshots.Subscribe()
	current := a.applySnapshot(snapshotMsg{snapshot: a.deps.Snapshots.Snapshot(), ok: true, initial: true})
	return tea.Batch(tickCmd(), waitForSnapshot(a.snapshots), current)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForSnapshot blocks until the poller publishes. A closed channel ends
// the loop.
func waitForSnapshot(ch <-chan poller.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		return snapshotMsg{snapshot: s, ok: ok}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case tickMsg:
		return a, tickCmd()

	case snapshotMsg:
		return a, a.applySnapshot(msg)

	case statsMsg:
		if msg.err != nil {
			a.logger.Warn("fetching stats failed", "error", msg.err)
			return a, nil
		}
		a.stats = msg.stats
		return a, nil

	case locationMsg:
		a.board.SetLocation(msg.id, msg.display)
		return a, nil

	case acceptedMsg:
		a.busy = false
		a.handleAccepted(msg)
		return a, nil

	case resolvedMsg:
		a.busy = false
		a.handleResolved(msg)
		return a, nil

	case impactMsg:
		if msg.id != a.impactID {
			return a, nil
		}
		if msg.err != nil {
			a.logger.Error("impact analysis failed", "mission_id", msg.id, "error", msg.err)
			a.summary.SetError(msg.err)
			return a, nil
		}
		a.summary.SetSummary(msg.summary)
		return a, nil
	}

	return a, nil
}

// applySnapshot renders a new cache snapshot and starts the follow-up
// lookups it needs. Only channel deliveries re-arm the wait, so exactly one
// waitForSnapshot is pending at a time.
func (a *App) applySnapshot(msg snapshotMsg) tea.Cmd {
	if !msg.ok {
		return nil
	}
	s := msg.snapshot
	a.board.SetSnapshot(s)

	var cmds []tea.Cmd
	if !s.AlertsSyncedAt.IsZero() && !s.AlertsSyncedAt.Equal(a.syncedAt) {
		a.syncedAt = s.AlertsSyncedAt
		if a.deps.Assigner != nil {
			a.deps.Assigner.Reconcile(s.Alerts)
		}
		cmds = append(cmds, a.fetchStats())
	}
	for _, d := range s.Alerts {
		if a.deps.Locations == nil || a.geocoding[d.ID] || !geocode.IsPlaceholder(d.Location) {
			continue
		}
		a.geocoding[d.ID] = true
		cmds = append(cmds, a.resolveLocation(d))
	}
	if !msg.initial {
		cmds = append(cmds, waitForSnapshot(a.snapshots))
	}
	return tea.Batch(cmds...)
}

func (a *App) fetchStats() tea.Cmd {
	if a.deps.Stats == nil {
		return nil
	}
	ctx, stats, timeout := a.ctx, a.deps.Stats, a.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		s, err := stats.GetStats(ctx)
		return statsMsg{stats: s, err: err}
	}
}

func (a *App) resolveLocation(d models.Disaster) tea.Cmd {
	ctx, loc := a.ctx, a.deps.Locations
	return func() tea.Msg {
		return locationMsg{id: d.ID, display: loc.DisplayLocation(ctx, d.Location, d.Latitude, d.Longitude)}
	}
}

func (a *App) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showConfirm {
		switch {
		case a.keys.Yes.Matches(msg):
			a.quitting = true
			if a.unsubscribe != nil {
				a.unsubscribe()
			}
			return a, tea.Quit
		case a.keys.No.Matches(msg):
			a.showConfirm = false
		}
		return a, nil
	}

	if a.deploy != nil {
		return a.handleDeployKeys(msg)
	}

	if a.board.Filter().Active() {
		a.board.Filter().HandleKey(msg.String())
		a.board.ApplyFilter()
		return a, nil
	}

	if a.keys.IsQuit(msg) {
		a.showConfirm = true
		return a, nil
	}

	switch a.screen {
	case ScreenHelp:
		if MatchesAny(msg, a.keys.Back, a.keys.Help) {
			a.screen = a.prevScreen
		}
		return a, nil
	case ScreenDetail:
		return a.handleDetailKeys(msg)
	case ScreenImpact:
		return a.handleImpactKeys(msg)
	}
	return a.handleBoardKeys(msg)
}

func (a *App) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Help.Matches(msg):
		a.prevScreen = a.screen
		a.screen = ScreenHelp
	case a.keys.Up.Matches(msg):
		a.board.MoveUp()
	case a.keys.Down.Matches(msg):
		a.board.MoveDown()
	case a.keys.PageUp.Matches(msg):
		a.board.PageUp()
	case a.keys.PageDown.Matches(msg):
		a.board.PageDown()
	case a.keys.Tab.Matches(msg):
		a.board.NextTab()
	case a.keys.Search.Matches(msg):
		a.board.Filter().Open()
	case a.keys.Back.Matches(msg):
		if a.board.Filter().Query() != "" {
			a.board.Filter().Clear()
			a.board.ApplyFilter()
		}
	case a.keys.Refresh.Matches(msg):
		a.deps.Snapshots.RefreshNow()
		a.AddNotice(NoticeInfo, "Sync requested")
	case a.keys.Details.Matches(msg):
		if d, ok := a.board.Selected(); ok {
			a.detail = d
			a.deps.Snapshots.Select(d.ID)
			a.screen = ScreenDetail
		}
	case a.keys.Impact.Matches(msg):
		if d, ok := a.board.Selected(); ok {
			return a, a.openImpact(d)
		}
	case a.keys.Accept.Matches(msg):
		if d, ok := a.board.Selected(); ok {
			return a, a.requestAccept(d)
		}
	case a.keys.Resolve.Matches(msg):
		if d, ok := a.board.Selected(); ok && a.board.Tab() == missionview.TabMine {
			return a, a.requestResolve(d)
		}
	}
	return a, nil
}

func (a *App) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Back.Matches(msg):
		a.screen = ScreenBoard
	case a.keys.Impact.Matches(msg):
		return a, a.openImpact(a.detail)
	case a.keys.Accept.Matches(msg):
		return a, a.requestAccept(a.detail)
	case a.keys.Help.Matches(msg):
		a.prevScreen = a.screen
		a.screen = ScreenHelp
	}
	return a, nil
}

func (a *App) handleImpactKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Back.Matches(msg):
		a.impactID = ""
		a.screen = ScreenBoard
	case a.keys.Up.Matches(msg):
		a.summary.MoveUp()
	case a.keys.Down.Matches(msg):
		a.summary.MoveDown()
	case a.keys.Help.Matches(msg):
		a.prevScreen = a.screen
		a.screen = ScreenHelp
	}
	return a, nil
}

func (a *App) handleDeployKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case a.keys.Yes.Matches(msg):
		d := a.deploy.mission
		a.deploy = nil
		return a, a.acceptCmd(d)
	case a.keys.No.Matches(msg):
		a.logger.Info("low trust deployment cancelled", "mission_id", a.deploy.mission.ID)
		a.deploy = nil
		a.AddNotice(NoticeInfo, "Deployment cancelled")
	}
	return a, nil
}

func (a *App) openImpact(d models.Disaster) tea.Cmd {
	a.deps.Snapshots.Select(d.ID)
	a.impactID = d.ID
	a.screen = ScreenImpact
	a.summary.SetLoading(a.board.Location(d))

	if a.deps.Impact == nil {
		a.summary.SetError(errors.New("impact analysis not configured"))
		return nil
	}
	ctx, builder := a.ctx, a.deps.Impact
	camps := a.deps.Snapshots.Snapshot().CampsFor(d.ID)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, impactTimeout)
		defer cancel()
		s, err := builder.Build(ctx, d, camps)
		return impactMsg{id: d.ID, summary: s, err: err}
	}
}

// requestAccept runs the trust gate. Low-trust missions wait for the
// operator's answer in the deploy dialog before any backend call.
func (a *App) requestAccept(d models.Disaster) tea.Cmd {
	if a.busy {
		return nil
	}
	if missions.EvaluateTrust(d.TrustScore) == missions.RequireConfirmation && d.IsOpen() {
		a.deploy = &pendingDeploy{mission: d, prompt: missions.ConfirmationPrompt(d.TrustScore)}
		return nil
	}
	return a.acceptCmd(d)
}

func (a *App) acceptCmd(d models.Disaster) tea.Cmd {
	if a.deps.Assigner == nil {
		return nil
	}
	a.busy = true
	ctx, assigner, responder, timeout := a.ctx, a.deps.Assigner, a.deps.Responder, a.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		// The operator already answered the trust prompt in the dialog.
		res, err := assigner.Accept(ctx, d, responder, missions.AlwaysConfirm)
		return acceptedMsg{mission: d, result: res, err: err}
	}
}

func (a *App) handleAccepted(msg acceptedMsg) {
	if msg.err != nil {
		if errors.Is(msg.err, missions.ErrDeclined) {
			a.AddNotice(NoticeInfo, "Deployment cancelled")
			return
		}
		a.logger.Warn("accepting mission failed", "mission_id", msg.mission.ID, "error", msg.err)
		a.AddNotice(NoticeCritical, MissionUnavailable)
		return
	}
	a.logger.Info("mission accepted", "mission_id", msg.mission.ID, "responder", a.deps.Responder)
	a.AddNotice(NoticeInfo, "Mission accepted: "+a.board.Location(msg.mission))
}

func (a *App) requestResolve(d models.Disaster) tea.Cmd {
	if a.busy || a.deps.Resolver == nil {
		return nil
	}
	if d.MissionStatus != models.MissionStatusAssigned {
		a.AddNotice(NoticeWarning, "Only assigned missions can be resolved")
		return nil
	}
	a.busy = true
	ctx, resolver, timeout := a.ctx, a.deps.Resolver, a.deps.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := resolver.ResolveMission(ctx, d.ID)
		return resolvedMsg{mission: d, err: err}
	}
}

func (a *App) handleResolved(msg resolvedMsg) {
	a.deps.Snapshots.RefreshNow()
	if msg.err != nil {
		a.logger.Warn("resolving mission failed", "mission_id", msg.mission.ID, "error", msg.err)
		if models.IsConflict(msg.err) {
			a.AddNotice(NoticeCritical, MissionUnavailable)
		} else {
			a.AddNotice(NoticeWarning, "Resolve failed, try again")
		}
		return
	}
	a.logger.Info("mission resolved", "mission_id", msg.mission.ID)
	a.AddNotice(NoticeInfo, "Mission resolved: "+a.board.Location(msg.mission))
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initializing..."
	}

	if a.quitting {
		return a.theme.Title.Render("IDRO responder console shutting down...")
	}

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")

	b.WriteString(a.renderNoticeBar())
	b.WriteString("\n")

	contentHeight := ContentHeight(a.height, 6)
	switch {
	case a.showConfirm:
		b.WriteString(a.renderConfirmDialog(contentHeight))
	case a.deploy != nil:
		b.WriteString(a.renderDeployDialog(contentHeight))
	default:
		b.WriteString(a.renderContent(contentHeight))
	}

	b.WriteString("\n")
	b.WriteString(a.renderFooter())

	return b.String()
}

func (a *App) renderHeader() string {
	title := fmt.Sprintf("IDRO RESPONDER CONSOLE v%s", Version)

	info := a.deps.Responder
	if a.stats != nil {
		info = fmt.Sprintf("%s | ACTIVE: %d | CRITICAL: %d",
			a.deps.Responder, a.stats.ActiveAlerts, a.stats.CriticalAlerts)
	}
	if GetBreakpoint(a.width) == BreakpointNarrow {
		title = "IDRO"
	}

	spacing := a.width - lipgloss.Width(title) - lipgloss.Width(info) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := a.theme.Header.Render(title) +
		strings.Repeat(" ", spacing) +
		a.theme.Header.Render(info)

	return header + "\n" + a.theme.DrawDoubleLine(a.width)
}

func (a *App) renderNoticeBar() string {
	now := a.deps.Now()
	clock := a.theme.Value.Render(now.Format(util.ClockFormat))
	synced := a.theme.Muted.Render("synced " + util.RelativeTimeString(a.syncedAt, now))
	divider := a.theme.StatusDivider.Render()

	var text string
	switch {
	case a.busy:
		text = a.theme.NoticeWarn.Render("Contacting command...")
	case len(a.notices) > 0:
		n := a.notices[0]
		switch n.Level {
		case NoticeCritical:
			text = a.theme.NoticeCrit.Render(n.Message)
		case NoticeWarning:
			text = a.theme.NoticeWarn.Render(n.Message)
		default:
			text = a.theme.NoticeInfo.Render(n.Message)
		}
	case a.stats != nil && a.stats.ThreatOutlook != "":
		text = a.theme.Accent.Render(a.stats.ThreatOutlook)
	default:
		text = a.theme.Muted.Render("Standing by")
	}

	return clock + divider + synced + divider + text
}

func (a *App) renderContent(height int) string {
	contentWidth := ContentWidth(a.width, 40, MaxContentWidth)

	var content string
	switch a.screen {
	case ScreenDetail:
		content = a.theme.Panel("MISSION", a.board.RenderDetail(a.detail, contentWidth-4), contentWidth)
	case ScreenImpact:
		content = a.summary.Render(contentWidth, height)
	case ScreenHelp:
		content = a.renderHelp()
	default:
		content = a.board.Render(contentWidth, height)
	}

	style := lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		MaxHeight(height).
		Align(lipgloss.Center, lipgloss.Top)
	return style.Render(lipgloss.NewStyle().Width(contentWidth).Render(content))
}

func (a *App) renderHelp() string {
	var b strings.Builder
	b.WriteString(a.theme.Title.Render("═══ KEYBOARD REFERENCE ═══"))
	b.WriteString("\n\n")

	bindings := []Key{
		a.keys.Up, a.keys.Down, a.keys.PageUp, a.keys.PageDown, a.keys.Tab,
		a.keys.Impact, a.keys.Details, a.keys.Accept, a.keys.Resolve,
		a.keys.Search, a.keys.Refresh, a.keys.Back, a.keys.Help, a.keys.Quit,
	}
	for _, k := range bindings {
		b.WriteString(a.theme.Label.Render(PadRight(strings.Join(k.Keys, ", "), 16)))
		b.WriteString(a.theme.Value.Render(k.Help))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.theme.Muted.Render(fmt.Sprintf(
		"Reports below %d%% trust ask for confirmation before deployment.", missions.ConfirmationThreshold)))
	b.WriteString("\n\n")
	b.WriteString(a.theme.Label.Render("Press Esc to go back"))
	return b.String()
}

func (a *App) renderConfirmDialog(height int) string {
	dialog := a.theme.Box.Render(
		a.theme.Title.Render("CONFIRM EXIT") + "\n\n" +
			a.theme.Base.Render("Leave the responder console?") + "\n\n" +
			a.theme.Label.Render("[Y]es  [N]o"),
	)

	style := lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render(dialog)
}

// renderDeployDialog shows the low-trust warning for a pending deployment.
func (a *App) renderDeployDialog(height int) string {
	d := a.deploy.mission
	dialog := a.theme.Warn.Render(
		a.theme.Error.Render(a.deploy.prompt) + "\n\n" +
			a.theme.Label.Render("Mission: ") + a.theme.Value.Render(string(d.Type)+" at "+a.board.Location(d)) + "\n\n" +
			a.theme.Label.Render("[Y]es, deploy  [N]o"),
	)

	style := lipgloss.NewStyle().
		Width(a.width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center)

	return style.Render(dialog)
}

func (a *App) renderFooter() string {
	help := a.keys.StatusBarHelp(GetBreakpoint(a.width))
	return a.theme.DrawHorizontalLine(a.width) + "\n" + a.theme.Footer.Render(help)
}

// AddNotice shows a message in the notice bar, keeping the most recent.
func (a *App) AddNotice(level NoticeLevel, message string) {
	a.notices = append([]Notice{{
		Level:   level,
		Message: message,
		Time:    a.deps.Now(),
	}}, a.notices...)

	if len(a.notices) > maxNotices {
		a.notices = a.notices[:maxNotices]
	}
}

// Notices returns the notices, newest first.
func (a *App) Notices() []Notice {
	return a.notices
}

// Run starts the console and blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, deps Deps) error {
	app := New(deps)
	app.ctx = ctx

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	if app.unsubscribe != nil {
		app.unsubscribe()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
