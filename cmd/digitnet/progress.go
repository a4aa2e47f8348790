package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
)

// epochBar shows a progress bar over the mini-batches of the running epoch.
type epochBar struct {
	epoch int
	bar   *progressbar.ProgressBar
}

func newEpochBar() *epochBar {
	return &epochBar{epoch: -1}
}

// update is a trainer.Options.OnBatch callback.
func (b *epochBar) update(done, total int) {
	if done == 1 || b.bar == nil {
		b.epoch++
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("Epoch %d", b.epoch)),
			progressbar.OptionUseANSICodes(true),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = b.bar.Set(done)
	if done == total {
		_ = b.bar.Finish()
	}
}
