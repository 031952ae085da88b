package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/geolist/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title   lipgloss.Style
	success lipgloss.Style
	error   lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:   NewBold(t).MarginBottom(1),
		success: NewBold(s),
		error:   NewBold(e),
		warning: NewStyle(w),
		muted:   NewEm(h),
	}
}

// Status styles an origin status by outcome.
func (p *Palette) Status(s models.OriginStatus) lipgloss.Style {
	switch s {
	case models.StatusSuccess:
		return p.success
	case models.StatusError:
		return p.error
	case models.StatusAmbiguous:
		return p.warning
	default:
		return p.muted
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
