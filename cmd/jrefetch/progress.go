package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/pipeline"
)

const (
	padding  = 2
	maxWidth = 80
)

// eventMsg carries a pipeline event into the program.
type eventMsg pipeline.Event

// logLineMsg carries a log line to print above the progress bar.
type logLineMsg string

// progressModel renders one pipeline run. It quits on the run's terminal
// event; Ctrl+C requests an abort and keeps rendering until the pipeline
// confirms it.
type progressModel struct {
	channel   jre.Channel
	abort     func()
	bar       progress.Model
	state     pipeline.State
	completed int64
	total     int64
	started   time.Time
	aborting  bool
	final     *pipeline.Event
	now       func() time.Time
}

func newProgressModel(channel jre.Channel, abort func()) progressModel {
	return progressModel{
		channel: channel,
		abort:   abort,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		state: pipeline.Idle,
		now:   time.Now,
	}
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.aborting {
			m.aborting = true
			m.abort()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.bar.Width = max(min(msg.Width-padding*2-4, maxWidth), 10)
		return m, nil

	case logLineMsg:
		return m, tea.Println(string(msg))

	case eventMsg:
		return m.handleEvent(pipeline.Event(msg))

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd

	default:
		return m, nil
	}
}

func (m progressModel) handleEvent(e pipeline.Event) (tea.Model, tea.Cmd) {
	if e.IsTerminal() {
		m.final = &e
		return m, tea.Quit
	}

	switch e.Type {
	case pipeline.EventState:
		// Each transfer stage reports its own totals.
		m.state = e.To
		m.completed, m.total = 0, 0
		m.started = m.now()
		return m, m.bar.SetPercent(0)

	case pipeline.EventProgress:
		if e.Progress == nil {
			return m, nil
		}
		m.completed, m.total = e.Progress.Completed, e.Progress.Total
		if m.total <= 0 {
			return m, nil
		}
		return m, m.bar.SetPercent(float64(m.completed) / float64(m.total))
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.final != nil {
		return ""
	}

	pad := strings.Repeat(" ", padding)
	status := stageLabel(m.state)
	if m.aborting {
		status = "Aborting..."
	}
	header := pad + titleStyle.Render(fmt.Sprintf("Java %d", m.channel.JavaVersion())) + " " + status + "\n"

	if m.state != pipeline.MaterializingFiles && m.state != pipeline.DownloadingArchive {
		return "\n" + header
	}

	info := fmt.Sprintf("%s / %s", humanize.Bytes(uint64(m.completed)), humanize.Bytes(uint64(m.total)))
	if m.total > 0 {
		info += fmt.Sprintf(" (%.0f%%)", m.bar.Percent()*100)
	}
	if speed := m.speed(); speed > 0 {
		info += " - " + humanize.Bytes(uint64(speed)) + "/s"
	}

	return "\n" + header +
		pad + m.bar.View() + "\n" +
		pad + faintStyle.Render(info) + "\n"
}

// speed returns bytes per second since the current stage started.
func (m progressModel) speed() float64 {
	if m.started.IsZero() {
		return 0
	}
	elapsed := m.now().Sub(m.started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.completed) / elapsed
}

func stageLabel(s pipeline.State) string {
	switch s {
	case pipeline.QueryingManifest:
		return "Looking up runtime manifest..."
	case pipeline.MaterializingFiles:
		return "Downloading runtime files"
	case pipeline.QueryingFallback:
		return "Looking up fallback runtime..."
	case pipeline.DownloadingArchive:
		return "Downloading runtime archive"
	case pipeline.Extracting:
		return "Extracting runtime..."
	default:
		return "Starting..."
	}
}

// programWriter forwards log output to a running program. Lines written
// after the program exits are dropped.
type programWriter struct {
	program *tea.Program
}

func (w programWriter) Write(p []byte) (int, error) {
	w.program.Send(logLineMsg(strings.TrimRight(string(p), "\n")))
	return len(p), nil
}
