package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hl-action-kit/internal/app"
	"hl-action-kit/internal/config"
	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/hl/exchange"
	"hl-action-kit/internal/hl/rest"
	"hl-action-kit/internal/hl/ws"
	"hl-action-kit/internal/logging"

	"go.uber.org/zap"
)

const defaultEnvFile = ".env"

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, a *app.App, args []string) error
}

var commands = []command{
	{name: "referral", usage: "-user ADDR", run: runReferral},
	{name: "ratelimit", usage: "-user ADDR", run: runRateLimit},
	{name: "deploystate", usage: "-user ADDR", run: runDeployState},
	{name: "spotbalances", usage: "-user ADDR", run: runSpotBalances},
	{name: "orders", usage: "-user ADDR", run: runHistoricalOrders},
	{name: "info", usage: "-type KIND [-user ADDR]", run: runInfo},
	{name: "wsinfo", usage: "-type KIND [-user ADDR]", run: runWSInfo},
	{name: "subscribe", usage: "-type userEvents [-user ADDR] [-coin COIN]", run: runSubscribe},
	{name: "order", usage: "-asset N -price P -size S -sz-decimals D [-buy] [-tif Gtc] [-dry-run]", run: runOrder},
	{name: "send", usage: "-destination ADDR -token NAME:0xID -amount A [-dry-run]", run: runSend},
	{name: "transfer", usage: "-amount A [-to-perp]", run: runTransfer},
	{name: "agents", usage: "", run: runAgents},
	{name: "genesis", usage: "-token N -anchor-token N -wei W", run: runGenesis},
}

func main() {
	configPath := flag.String("config", "", "optional config path")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := config.LoadEnv(defaultEnvFile); err != nil {
		fatal(err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	name := flag.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	application, err := app.New(cfg, log)
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	application.Start(ctx)
	log.Debug("running command", zap.String("command", name), zap.String("network", application.Network().String()))

	err = cmd.run(ctx, application, flag.Args()[1:])
	application.Close()
	if err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: hltools [-config path] <command> [flags]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-13s %s\n", c.name, c.usage)
	}
}

func userFlag(name string, args []string) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	user := fs.String("user", strings.TrimSpace(os.Getenv("HL_WALLET_ADDRESS")), "user address")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	return strings.TrimSpace(*user), nil
}

func runReferral(ctx context.Context, a *app.App, args []string) error {
	user, err := userFlag("referral", args)
	if err != nil {
		return err
	}
	resp, err := a.Info().Referral(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(app.ReferralReport(user, resp))
	return nil
}

func runRateLimit(ctx context.Context, a *app.App, args []string) error {
	user, err := userFlag("ratelimit", args)
	if err != nil {
		return err
	}
	resp, err := a.Info().UserRateLimit(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(app.RateLimitReport(user, resp))
	return nil
}

func runDeployState(ctx context.Context, a *app.App, args []string) error {
	user, err := userFlag("deploystate", args)
	if err != nil {
		return err
	}
	resp, err := a.Info().SpotDeployState(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(app.DeployStateReport(user, resp))
	return nil
}

func runSpotBalances(ctx context.Context, a *app.App, args []string) error {
	user, err := userFlag("spotbalances", args)
	if err != nil {
		return err
	}
	resp, err := a.Info().SpotClearinghouseState(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(app.SpotBalancesReport(user, resp))
	return nil
}

func runHistoricalOrders(ctx context.Context, a *app.App, args []string) error {
	user, err := userFlag("orders", args)
	if err != nil {
		return err
	}
	orders, err := a.Info().HistoricalOrders(ctx, user)
	if err != nil {
		return err
	}
	fmt.Print(app.HistoricalOrdersReport(user, orders))
	return nil
}

func infoFlags(name string, args []string) (rest.InfoRequest, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	kind := fs.String("type", "", "info request type")
	user := fs.String("user", "", "optional user address")
	if err := fs.Parse(args); err != nil {
		return rest.InfoRequest{}, err
	}
	return rest.NewInfoRequest(*kind, *user)
}

func runInfo(ctx context.Context, a *app.App, args []string) error {
	req, err := infoFlags("info", args)
	if err != nil {
		return err
	}
	payload, err := a.Info().Info(ctx, req)
	if err != nil {
		return err
	}
	return printRaw(payload)
}

func runWSInfo(ctx context.Context, a *app.App, args []string) error {
	req, err := infoFlags("wsinfo", args)
	if err != nil {
		return err
	}
	payload, err := a.PostInfo(ctx, req)
	if err != nil {
		return err
	}
	return printRaw(payload)
}

// runSubscribe prints pushed messages, one per line, until interrupted.
func runSubscribe(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("subscribe", flag.ContinueOnError)
	kind := fs.String("type", "userEvents", "subscription type")
	user := fs.String("user", strings.TrimSpace(os.Getenv("HL_WALLET_ADDRESS")), "user address")
	coin := fs.String("coin", "", "coin for market subscriptions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sub := ws.Subscription{Type: *kind, User: strings.TrimSpace(*user), Coin: strings.TrimSpace(*coin)}
	if sub.User != "" {
		if err := chain.ValidateAddress(sub.User); err != nil {
			return err
		}
	}
	return a.Stream(ctx, sub, func(msg json.RawMessage) {
		fmt.Println(string(msg))
	})
}

func runOrder(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	asset := fs.Int("asset", -1, "asset index")
	isBuy := fs.Bool("buy", false, "buy instead of sell")
	price := fs.Float64("price", 0, "limit price")
	size := fs.Float64("size", 0, "order size")
	szDecimals := fs.Uint("sz-decimals", 0, "instrument size decimals")
	reduceOnly := fs.Bool("reduce-only", false, "reduce only")
	tif := fs.String("tif", string(exchange.TifGtc), "time in force (Gtc, Ioc, Alo)")
	cloid := fs.String("cloid", "", "optional client order id")
	dryRun := fs.Bool("dry-run", false, "print the signed payload and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *asset < 0 {
		return errors.New("-asset is required")
	}
	if *szDecimals > 8 {
		return errors.New("-sz-decimals must be <= 8")
	}
	wire, err := exchange.LimitOrderWire(*asset, *isBuy, *size, *price, uint8(*szDecimals), *reduceOnly, exchange.Tif(*tif), *cloid)
	if err != nil {
		return err
	}
	fmt.Printf("order: asset=%d buy=%t size=%s limit_price=%s tif=%s\n", wire.Asset, wire.IsBuy, wire.Size, wire.Price, *tif)
	action := exchange.NewOrderAction(exchange.GroupingNA, wire)
	if *dryRun {
		payload, err := a.PreviewL1(ctx, action)
		if err != nil {
			return err
		}
		return printJSON(payload)
	}
	client, err := a.Exchange(ctx)
	if err != nil {
		return err
	}
	resp, err := client.SubmitL1(ctx, action)
	if err != nil {
		return err
	}
	if orderID := exchange.OrderIDFromResponse(resp); orderID != "" {
		fmt.Printf("exchange response: order_id=%s\n", orderID)
		return nil
	}
	return printJSON(resp)
}

func runSend(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	destination := fs.String("destination", "", "recipient address")
	token := fs.String("token", "", "token as NAME:0xTOKENID")
	amount := fs.String("amount", "", "amount in token units")
	dryRun := fs.Bool("dry-run", false, "print the signed payload and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := chain.ValidateAddress(*destination); err != nil {
		return err
	}
	if !strings.Contains(*token, ":") {
		return errors.New("-token must be NAME:0xTOKENID")
	}
	if *dryRun {
		payload, err := a.PreviewSpotSend(ctx, *destination, *token, *amount)
		if err != nil {
			return err
		}
		return printJSON(payload)
	}
	client, err := a.Exchange(ctx)
	if err != nil {
		return err
	}
	resp, err := client.SpotSend(ctx, *destination, *token, *amount)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runTransfer(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	amount := fs.Float64("amount", 0, "USDC amount")
	toPerp := fs.Bool("to-perp", false, "move from spot to perp instead of perp to spot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := a.Exchange(ctx)
	if err != nil {
		return err
	}
	resp, err := client.USDClassTransfer(ctx, *amount, *toPerp)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func runAgents(ctx context.Context, a *app.App, args []string) error {
	records, err := a.Agents(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no agents recorded")
		return nil
	}
	for _, r := range records {
		approved := time.UnixMilli(r.ApprovedAtMS).UTC().Format(time.RFC3339)
		fmt.Printf("%-8s %s agent=%s approved=%s name=%q\n", r.Network, r.Owner, r.Agent, approved, r.Name)
	}
	return nil
}

// runGenesis approves a throwaway agent with the primary wallet, then has the
// agent submit the anchor-token genesis step.
func runGenesis(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("genesis", flag.ContinueOnError)
	token := fs.Int("token", -1, "token index being deployed")
	anchor := fs.Int("anchor-token", -1, "existing token index to anchor")
	wei := fs.String("wei", "", "genesis amount in wei")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token < 0 || *anchor < 0 {
		return errors.New("-token and -anchor-token are required")
	}
	if strings.TrimSpace(*wei) == "" {
		return errors.New("-wei is required")
	}
	client, err := a.Exchange(ctx)
	if err != nil {
		return err
	}
	if last, ok, err := a.LastAgent(ctx); err == nil && ok {
		fmt.Printf("previous agent: %s (%s)\n", last.Agent, last.Name)
	}
	approvedAt := time.Now()
	name := app.AgentName("hltools genesis", approvedAt)
	agent, _, err := client.ApproveAgent(ctx, name)
	if err != nil {
		return fmt.Errorf("approve agent: %w", err)
	}
	fmt.Printf("agent approved: %s\n", agent.Address().Hex())
	if err := a.RememberAgent(ctx, agent.Address(), name, approvedAt); err != nil {
		fmt.Fprintf(os.Stderr, "agent record not saved: %v\n", err)
	}
	action := exchange.UserGenesisAction(*token, nil, []exchange.TokenWei{{Token: *anchor, Wei: *wei}})
	resp, err := client.SpotDeploy(ctx, action)
	if err != nil {
		return err
	}
	return printJSON(resp)
}

func printJSON(v any) error {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func printRaw(payload json.RawMessage) error {
	var out any
	if err := json.Unmarshal(payload, &out); err != nil {
		return err
	}
	return printJSON(out)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
