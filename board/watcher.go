package board

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/neurapixel/go-pixelboard/contracts/pixelcanvas"
	"github.com/neurapixel/go-pixelboard/notifier"
)

// startWatchLocked subscribes to PixelPainted notifications on the given
// handle. The handle is passed in explicitly so the loop never closes over a
// stale one; each Rebuild tears the previous loop down first. Caller holds
// c.mu.
func (c *Client) startWatchLocked(reader Reader) {
	quit := make(chan struct{})
	c.watchQuit = quit
	go c.watchPixelPainted(reader, quit)
}

// teardownWatchLocked stops the current watch loop, if any. Caller holds c.mu.
func (c *Client) teardownWatchLocked() {
	if c.watchQuit != nil {
		close(c.watchQuit)
		c.watchQuit = nil
	}
}

// watchPixelPainted applies remote paint notifications to the board cache.
// This is how pixels painted by other clients propagate without a manual
// refresh. Each delta touches a single coordinate key, so interleaving with
// concurrent reloads commutes.
func (c *Client) watchPixelPainted(reader Reader, quit <-chan struct{}) {
	sink := make(chan *pixelcanvas.PixelPainted, 16)
	sub, err := reader.WatchPixelPainted(&bind.WatchOpts{}, sink, nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to subscribe to PixelPainted events")
		return
	}
	defer sub.Unsubscribe()
	c.logger.Debug().Msg("Subscribed to PixelPainted events")

	for {
		select {
		case painted := <-sink:
			c.handlePixelPainted(painted)
		case err := <-sub.Err():
			if err != nil {
				c.logger.Error().Err(err).Msg("PixelPainted subscription failed")
			}
			return
		case <-quit:
			c.logger.Debug().Msg("Unsubscribed from PixelPainted events")
			return
		}
	}
}

// handlePixelPainted upserts or deletes exactly the notified coordinate and
// refreshes the stats; colors are stored verbatim, never blended.
func (c *Client) handlePixelPainted(painted *pixelcanvas.PixelPainted) {
	x := int(painted.X.Int64())
	y := int(painted.Y.Int64())
	color := uint32(painted.Color.Uint64())

	c.logger.Debug().
		Str("user", painted.User.Hex()).
		Int("x", x).Int("y", y).
		Str("color", FormatHexColor(color)).
		Msg("PixelPainted event")

	c.pixels.Apply(Coord{X: x, Y: y}, color)
	if c.notices != nil {
		c.notices.Publish(notifier.LevelInfo,
			fmt.Sprintf("Pixel (%d,%d) painted %s by %s", x, y, FormatHexColor(color), painted.User.Hex()), "")
	}
	if err := c.LoadStats(context.Background()); err != nil {
		c.logger.Debug().Err(err).Msg("Stats reload after event failed")
	}
}
