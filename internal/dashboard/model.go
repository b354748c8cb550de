// Package dashboard is the terminal UI behind facelens-top. It polls the
// service's /api/v1/stats endpoint and renders admission, detection and
// overlay counters.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/facelens/internal/server"
)

const historyLen = 60

// Model is the bubbletea model for facelens-top.
type Model struct {
	baseURL  string
	client   *http.Client
	interval time.Duration

	stats     *server.StatsResponse
	lastErr   error
	lastPoll  time.Time
	prev      *server.StatsResponse
	faces     []float64
	dropRates []float64

	width    int
	quitting bool
}

// Messages
type tickMsg time.Time

type statsMsg struct {
	stats *server.StatsResponse
	err   error
	at    time.Time
}

// New creates a model polling baseURL every interval.
func New(baseURL string, client *http.Client, interval time.Duration) *Model {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Model{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		interval: interval,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickEvery(m.interval), m.fetch())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		}

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(tickEvery(m.interval), m.fetch())

	case statsMsg:
		m.lastPoll = msg.at
		m.lastErr = msg.err
		if msg.err == nil {
			m.record(msg.stats)
		}
		return m, nil
	}

	return m, nil
}

// record keeps rolling histories of faces per set and the drop rate over
// the last poll interval.
func (m *Model) record(s *server.StatsResponse) {
	m.prev, m.stats = m.stats, s

	m.faces = appendCapped(m.faces, float64(s.Pipeline.LastSetFaces))

	if m.prev != nil {
		cur, old := s.Pipeline.Admission, m.prev.Pipeline.Admission
		offered := (cur.Admitted + cur.Dropped) - (old.Admitted + old.Dropped)
		if offered > 0 && cur.Dropped >= old.Dropped {
			m.dropRates = appendCapped(m.dropRates, float64(cur.Dropped-old.Dropped)/float64(offered)*100)
		}
	}
}

func appendCapped(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyLen {
		h = h[len(h)-historyLen:]
	}
	return h
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down dashboard...\n"
	}

	width := m.width
	if width == 0 {
		width = 100
	}
	panelWidth := max(width/2-2, 36)

	sections := []string{m.renderHeader(width)}
	if m.stats == nil {
		sections = append(sections, MutedStyle.Render("Waiting for "+m.baseURL+"/api/v1/stats ..."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
	}

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderAdmission(panelWidth),
		m.renderDetection(panelWidth),
	)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderOverlay(panelWidth),
		m.renderComponents(panelWidth),
	)
	sections = append(sections, top, bottom,
		MutedStyle.Render("q quit • r refresh"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *Model) renderHeader(width int) string {
	state := "offline"
	if m.stats != nil && m.lastErr == nil {
		state = m.stats.Pipeline.Admission.State
	}
	line := fmt.Sprintf("FACELENS  %s  %s", StateBadge(state), MutedStyle.Render(m.baseURL))
	if !m.lastPoll.IsZero() {
		line += "  " + MutedStyle.Render("updated "+m.lastPoll.Format("15:04:05"))
	}
	if m.lastErr != nil {
		line += "  " + ErrorStyle.Render(m.lastErr.Error())
	}
	return HeaderStyle.Width(max(width-2, 20)).Render(line)
}

func (m *Model) renderAdmission(width int) string {
	a := m.stats.Pipeline.Admission
	rows := []string{
		PanelTitleStyle.Render("Admission"),
		row("State", StateBadge(a.State)),
		row("Admitted", ValueStyle.Render(formatNumber(a.Admitted))),
		row("Dropped", ValueStyle.Render(formatNumber(a.Dropped))),
		row("Drop rate", dropRateStyle(a.Dropped, a.Admitted+a.Dropped)),
		row("Completed", ValueStyle.Render(formatNumber(a.Completed))),
		row("Busy for", ValueStyle.Render(a.BusyFor.Round(time.Millisecond).String())),
		row("Drops/poll", MutedStyle.Render(sparkline(m.dropRates, 24))),
	}
	return PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderDetection(width int) string {
	p := m.stats.Pipeline
	failures := p.DecodeFailures + p.DetectorFailures
	failStyle := SuccessStyle
	if failures > 0 {
		failStyle = ErrorStyle
	}
	faceStyle := SuccessStyle
	if p.FaceFailures > 0 {
		faceStyle = WarningStyle
	}

	lastSet := MutedStyle.Render("none yet")
	if !p.LastSetAt.IsZero() {
		lastSet = ValueStyle.Render(fmt.Sprintf("%d faces, %s ago", p.LastSetFaces, time.Since(p.LastSetAt).Round(time.Second)))
	}

	rows := []string{
		PanelTitleStyle.Render("Detection"),
		row("Analyzed", ValueStyle.Render(formatNumber(p.Analyzed))),
		row("Published", ValueStyle.Render(formatNumber(p.Published))),
		row("Frame failures", failStyle.Render(formatNumber(failures))),
		row("Face failures", faceStyle.Render(formatNumber(p.FaceFailures))),
		row("Last set", lastSet),
		row("Faces", MutedStyle.Render(sparkline(m.faces, 24))),
	}
	if p.LastFailure != nil {
		rows = append(rows, row("Last failure", ErrorStyle.Render(truncate(string(p.LastFailure.Type)+": "+p.LastFailure.Message, width-20))))
	}
	return PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderOverlay(width int) string {
	rows := []string{PanelTitleStyle.Render("Overlay")}
	if o := m.stats.Overlay; o != nil {
		rows = append(rows,
			row("Publishes", ValueStyle.Render(formatNumber(o.Publishes))),
			row("Repaints req", ValueStyle.Render(formatNumber(o.RepaintRequests))),
			row("Paints", ValueStyle.Render(formatNumber(o.Paints))),
		)
	} else {
		rows = append(rows, MutedStyle.Render("no display attached"))
	}
	return PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m *Model) renderComponents(width int) string {
	rows := []string{PanelTitleStyle.Render("Components")}
	flat := flatten("", m.stats.Components)
	if len(flat) == 0 {
		rows = append(rows, MutedStyle.Render("none"))
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, row(truncate(k, 15), ValueStyle.Render(flat[k])))
	}
	return PanelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// flatten turns nested JSON objects into dotted keys.
func flatten(prefix string, v interface{}) map[string]string {
	out := make(map[string]string)
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			for fk, fv := range flatten(key, inner) {
				out[fk] = fv
			}
		}
	case nil:
	case float64:
		out[prefix] = formatNumber(uint64(val))
		if val != float64(uint64(val)) {
			out[prefix] = fmt.Sprintf("%.2f", val)
		}
	default:
		out[prefix] = fmt.Sprint(val)
	}
	return out
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

func truncate(s string, n int) string {
	if n <= 1 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatNumber(num uint64) string {
	switch {
	case num >= 1000000000:
		return fmt.Sprintf("%.1fB", float64(num)/1000000000)
	case num >= 1000000:
		return fmt.Sprintf("%.1fM", float64(num)/1000000)
	case num >= 1000:
		return fmt.Sprintf("%.1fK", float64(num)/1000)
	}
	return fmt.Sprintf("%d", num)
}

func dropRateStyle(dropped, total uint64) string {
	if total == 0 {
		return ValueStyle.Render("0%")
	}
	rate := float64(dropped) / float64(total) * 100
	switch {
	case rate == 0:
		return SuccessStyle.Render("0%")
	case rate < 50:
		return ValueStyle.Render(fmt.Sprintf("%.1f%%", rate))
	case rate < 90:
		return WarningStyle.Render(fmt.Sprintf("%.1f%%", rate))
	default:
		return ErrorStyle.Render(fmt.Sprintf("%.1f%%", rate))
	}
}

// sparkline scales data into block characters.
func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return strings.Repeat("▁", width)
	}

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	if maxVal == minVal {
		return strings.Repeat("▄", width)
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := min(i*len(data)/width, len(data)-1)
		n := (data[idx] - minVal) / (maxVal - minVal)
		b.WriteRune(chars[min(int(n*7), 7)])
	}
	return b.String()
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) fetch() tea.Cmd {
	url := m.baseURL + "/api/v1/stats"
	client := m.client
	timeout := m.interval
	return func() tea.Msg {
		stats, err := FetchStats(context.Background(), client, url, timeout)
		return statsMsg{stats: stats, err: err, at: time.Now()}
	}
}

// FetchStats retrieves and decodes one stats snapshot.
func FetchStats(ctx context.Context, client *http.Client, url string, timeout time.Duration) (*server.StatsResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch stats: status %d", resp.StatusCode)
	}

	var stats server.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &stats, nil
}
