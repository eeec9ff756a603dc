package output

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/johnpc/jpc-homie/pkg/homie"
)

// HumanPrinter prints human-readable output.
type HumanPrinter struct{}

// Print renders human output.
func (HumanPrinter) Print(v any) error {
	switch data := v.(type) {
	case homie.QueueSnapshot:
		return printQueue(data)
	case homie.PlayerStatus:
		return printStatus(data)
	case homie.VolumeStatus:
		return printVolume(data)
	case homie.StatusResponse:
		return printAck(data)
	default:
		_, err := fmt.Fprintln(os.Stdout, "ok")
		return err
	}
}

func printQueue(snap homie.QueueSnapshot) error {
	if len(snap.Queue) == 0 {
		pterm.Info.Println("queue is empty")
		return nil
	}

	rows := pterm.TableData{{"", "#", "TITLE", "ARTIST", "ALBUM", "LEN"}}
	for idx, item := range snap.Queue {
		marker := ""
		if idx == snap.Position {
			marker = ">"
		}
		rows = append(rows, []string{
			marker,
			strconv.Itoa(idx),
			item.Name,
			item.Artist,
			item.Album,
			formatDuration(item.Duration),
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
		return err
	}

	if snap.Limited {
		pterm.Warning.Println("limited view: only the current and next tracks are known")
		return nil
	}
	if snap.Total > len(snap.Queue) {
		pterm.Info.Printfln("showing %d of %d tracks", len(snap.Queue), snap.Total)
	}
	return nil
}

func printStatus(status homie.PlayerStatus) error {
	line := status.State
	if status.Title != "" {
		line = fmt.Sprintf("%s  %s", status.State, status.Title)
		if status.Artist != "" {
			line += " / " + status.Artist
		}
		if status.Album != "" {
			line += " (" + status.Album + ")"
		}
	}
	switch status.State {
	case "playing":
		pterm.Success.Println(line)
	case "unavailable", "unknown":
		pterm.Warning.Println(line)
	default:
		pterm.Info.Println(line)
	}
	return nil
}

func printVolume(vol homie.VolumeStatus) error {
	if vol.Muted {
		pterm.Info.Printfln("muted (%d%%, from %s)", int(vol.Level*100+0.5), vol.Source)
		return nil
	}
	pterm.Info.Printfln("volume %d%% (from %s)", int(vol.Level*100+0.5), vol.Source)
	return nil
}

func printAck(resp homie.StatusResponse) error {
	if resp.Success {
		pterm.Success.Println("ok")
		return nil
	}
	pterm.Error.Println("failed")
	return nil
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
