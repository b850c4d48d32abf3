package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/neurapixel/go-pixelboard/board"
	"github.com/neurapixel/go-pixelboard/config"
	"github.com/neurapixel/go-pixelboard/notifier"
	"github.com/neurapixel/go-pixelboard/utils"
	"github.com/neurapixel/go-pixelboard/wallet"
)

type app struct {
	chain    *config.ChainConfig
	provider *wallet.KeystoreProvider
	manager  *wallet.Manager
	notices  *notifier.Queue
	client   *board.Client
}

func setup(ctx context.Context) (*app, error) {
	defaultChain := config.NeuraTestnet
	chain := &defaultChain
	if path := viper.GetString(config.KeyChainFile); path != "" {
		loaded, err := config.LoadChain(path)
		if err != nil {
			return nil, err
		}
		chain = loaded
	}
	if endpoint := viper.GetString(config.KeyRPCEndpoint); endpoint != "" {
		chain.RPCURLs = []string{endpoint}
	}

	provider, err := wallet.NewKeystoreProvider(
		viper.GetString(config.KeyKeystorePath),
		viper.GetString(config.KeyKeystorePassword),
		*chain,
	)
	if err != nil {
		return nil, err
	}

	manager := wallet.NewManager(provider, *chain)
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}
	if err := manager.Connect(ctx); err != nil {
		return nil, err
	}
	if !manager.Session().CorrectNetwork {
		if err := manager.SwitchNetwork(ctx); err != nil {
			return nil, err
		}
	}

	contractAddress := viper.GetString(config.KeyContractAddress)
	if contractAddress == "" {
		contractAddress = config.DefaultContractAddress
	}
	notices := notifier.NewQueue()
	client := board.NewClient(common.HexToAddress(contractAddress), *chain, notices)
	client.Bind(manager)

	return &app{chain: chain, provider: provider, manager: manager, notices: notices, client: client}, nil
}

func (a *app) close() {
	a.client.Close()
	a.manager.Stop()
	a.notices.Close()
	a.provider.Close()
}

func boardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "load the full board and list painted pixels",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			width, height, err := a.client.BoardSize(ctx)
			if err != nil {
				return err
			}
			if width != config.GridSize || height != config.GridSize {
				return fmt.Errorf("contract reports a %dx%d board, this client is built for %dx%d",
					width, height, config.GridSize, config.GridSize)
			}

			if err := a.client.LoadAllPixels(ctx); err != nil {
				return err
			}
			pixels := a.client.Pixels()
			coords := make([]board.Coord, 0, len(pixels))
			for coord := range pixels {
				coords = append(coords, coord)
			}
			sort.Slice(coords, func(i, j int) bool {
				if coords[i].Y != coords[j].Y {
					return coords[i].Y < coords[j].Y
				}
				return coords[i].X < coords[j].X
			})
			fmt.Printf("%d of %d pixels painted\n", len(pixels), config.GridSize*config.GridSize)
			for _, coord := range coords {
				fmt.Printf("  (%2d,%2d) %s\n", coord.X, coord.Y, board.FormatHexColor(pixels[coord]))
			}
			return nil
		},
	}
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print the contract stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.LoadStats(ctx); err != nil {
				return err
			}
			stats := a.client.Stats()
			symbol := a.chain.NativeCurrency.Symbol
			fmt.Printf("pixel price:  %s %s\n", utils.FormatEther(stats.PixelPrice), symbol)
			fmt.Printf("total paints: %d\n", stats.TotalPaints)
			fmt.Printf("cooldown:     %ds\n", stats.CooldownSeconds)
			fmt.Printf("paused:       %v\n", stats.Paused)
			return nil
		},
	}
}

func cooldownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cooldown",
		Short: "check whether the account may paint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.CheckUserCooldown(ctx); err != nil {
				return err
			}
			cooldown := a.client.Cooldown()
			if cooldown.CanPaint {
				fmt.Println("ready to paint")
			} else {
				fmt.Printf("cooldown active, %ds remaining\n", cooldown.SecondsRemaining)
			}
			return nil
		},
	}
}

func paintCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paint <x> <y> <#RRGGBB>",
		Short: "paint one pixel and wait for confirmation",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			x, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("malformed x %q: %w", args[0], err)
			}
			y, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("malformed y %q: %w", args[1], err)
			}
			color, err := board.ParseHexColor(args[2])
			if err != nil {
				return err
			}

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			// Cache the current price before submitting.
			if err := a.client.LoadStats(ctx); err != nil {
				return err
			}
			txHash, err := a.client.PaintPixel(ctx, x, y, int(color))
			if err != nil {
				return err
			}
			fmt.Printf("painted (%d,%d) %s\n", x, y, board.FormatHexColor(color))
			fmt.Printf("tx: %s\n", a.chain.ExplorerTxURL(txHash.Hex()))
			return nil
		},
	}
}

func watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "follow remote paint events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.client.LoadAllPixels(ctx); err != nil {
				return err
			}
			if interval := viper.GetInt(config.KeyCooldownPollSec); interval > 0 {
				a.client.StartCooldownPoll(ctx, time.Duration(interval)*time.Second)
			}

			notices, cancel := a.notices.Subscribe()
			defer cancel()
			fmt.Println("watching, ctrl-c to stop")
			for {
				select {
				case notice, ok := <-notices:
					if !ok {
						return nil
					}
					fmt.Printf("[%s] %s\n", notice.Time.Format(time.Stamp), notice.Message)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}
