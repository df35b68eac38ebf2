package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/ttacon/chalk"

	"github.com/zillionme/2023-naaga/client/internal/api"
	"github.com/zillionme/2023-naaga/client/internal/netcfg"
	"github.com/zillionme/2023-naaga/client/internal/session"
	"github.com/zillionme/2023-naaga/shared/protocol"
)

const usage = `usage: naaga <command> [flags]

commands:
  all       list every rank (-sort-by rank -order ascending|descending)
  my        show your own rank
  score     add points to your total (-points N)
  register  create an account (-user NAME -password PW)
  login     sign in and remember the token (-user NAME -password PW)
  logout    forget the saved token
  watch     follow the live board until interrupted
`

var errUsage = errors.New("usage")

// fail prints err in red and returns the process exit code for it.
func fail(err error) int {
	if errors.Is(err, errUsage) {
		fmt.Print(usage)
		return 2
	}
	fmt.Print(chalk.Red, err, chalk.Reset, "\n")
	return 1
}

type cli struct {
	sess *session.Store
	http *http.Client
	disp *api.Dispatcher
}

func (c *cli) token() string {
	if netcfg.Token != "" {
		return netcfg.Token
	}
	return c.sess.Token()
}

func (c *cli) client() *api.Client {
	return api.NewClient(netcfg.APIBase, c.http,
		api.WithToken(c.token),
		api.WithDispatcher(c.disp),
	)
}

func main() {
	log.SetFlags(0)
	os.Exit(run(os.Args[1:]))
}

// run executes one command; its deferred cleanup runs before main exits.
func run(argv []string) int {
	if len(argv) < 1 {
		return fail(errUsage)
	}

	disp, err := api.NewDispatcher(netcfg.DispatchWorkers)
	if err != nil {
		return fail(err)
	}
	defer disp.Release()

	c := &cli{
		sess: session.New(netcfg.Profile),
		http: &http.Client{Timeout: netcfg.Timeout},
		disp: disp,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := argv[0], argv[1:]
	switch cmd {
	case "all":
		err = c.all(ctx, args)
	case "my":
		err = c.my(ctx)
	case "score":
		err = c.score(ctx, args)
	case "register":
		err = c.register(ctx, args)
	case "login":
		err = c.login(ctx, args)
	case "logout":
		c.sess.Clear()
		fmt.Println("logged out")
	case "watch":
		err = c.watch(ctx)
	default:
		err = errUsage
	}
	if err != nil {
		return fail(err)
	}
	return 0
}

func (c *cli) all(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("all", flag.ContinueOnError)
	sortBy := fs.String("sort-by", protocol.SortByRank, "sort key")
	order := fs.String("order", protocol.OrderAscending, "ascending or descending")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	res := <-api.NewRankClient(c.client()).GetAllRank(*sortBy, *order).Enqueue(ctx)
	if res.Err != nil {
		return errors.Wrap(res.Err, "fetch ranks")
	}
	if len(res.Value) == 0 {
		fmt.Println("no ranked players yet")
		return nil
	}
	printBoard(res.Value, c.sess.Username())
	return nil
}

func (c *cli) my(ctx context.Context) error {
	res := <-api.NewRankClient(c.client()).GetMyRank().Enqueue(ctx)
	if api.IsNotFound(res.Err) {
		fmt.Println("no score yet; play a round first")
		return nil
	}
	if res.Err != nil {
		return errors.Wrap(res.Err, "fetch my rank")
	}
	printEntry(res.Value, true)
	return nil
}

func (c *cli) score(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	points := fs.Int("points", 0, "points to add (> 0)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	res := <-api.NewRankClient(c.client()).AddScore(*points).Enqueue(ctx)
	if res.Err != nil {
		return errors.Wrap(res.Err, "add score")
	}
	printEntry(res.Value, true)
	return nil
}

func credentials(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	user := fs.String("user", "", "username")
	password := fs.String("password", os.Getenv("NAAGA_PASSWORD"), "password (or NAAGA_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return "", "", errUsage
	}
	if strings.TrimSpace(*user) == "" || *password == "" {
		return "", "", errors.New("-user and -password are required")
	}
	return *user, *password, nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	user, password, err := credentials("register", args)
	if err != nil {
		return err
	}
	res := <-api.NewAuthClient(c.client()).Register(user, password).Enqueue(ctx)
	if res.Err != nil {
		return errors.Wrap(res.Err, "register")
	}
	fmt.Print("registered ", chalk.Green, user, chalk.Reset, "\n")
	return nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	user, password, err := credentials("login", args)
	if err != nil {
		return err
	}
	res := <-api.NewAuthClient(c.client()).Login(user, password).Enqueue(ctx)
	if res.Err != nil {
		return errors.Wrap(res.Err, "login")
	}
	if err := c.sess.Save(res.Value.Token, res.Value.Username); err != nil {
		return errors.Wrap(err, "save session")
	}
	fmt.Print("logged in as ", chalk.Green, res.Value.Username, chalk.Reset, "\n")
	return nil
}

func (c *cli) watch(ctx context.Context) error {
	fmt.Println("watching", netcfg.StreamURL, "(ctrl-c to stop)")
	me := c.sess.Username()
	return api.WatchBoard(ctx, netcfg.StreamURL, c.token(), func(b protocol.RankBoard) {
		fmt.Println(strings.Repeat("-", 40))
		printBoard(b.Ranks, me)
	})
}

func printBoard(ranks []protocol.RankEntry, me string) {
	for _, e := range ranks {
		printEntry(e, e.Player.Nickname == me)
	}
}

func printEntry(e protocol.RankEntry, highlight bool) {
	line := fmt.Sprintf("#%-4d %-20s %8d  top %d%%", e.Rank, e.Player.Nickname, e.Player.TotalScore, e.Percentage)
	if highlight {
		fmt.Print(chalk.Cyan, line, chalk.Reset, "\n")
		return
	}
	fmt.Println(line)
}
