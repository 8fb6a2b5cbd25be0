package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gameshub/uvlhub/config"
	"github.com/gameshub/uvlhub/database"
	"github.com/gameshub/uvlhub/fakenodo"
	"github.com/gameshub/uvlhub/logger"
	"github.com/gameshub/uvlhub/web"
	"github.com/gameshub/uvlhub/web/service"

	"github.com/spf13/cobra"
)

func initLogger() {
	level, err := logger.ParseLevel(config.GetLogLevel())
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level)
}

func openDB() {
	if err := database.InitDB(config.GetDBPath()); err != nil {
		log.Fatal(err)
	}
}

func waitSignal(onReload func() error, onStop func() error) {
	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for {
		sig := <-sigCh
		if sig == syscall.SIGHUP && onReload != nil {
			if err := onReload(); err != nil {
				log.Println(err)
				return
			}
			continue
		}
		if err := onStop(); err != nil {
			logger.Warning("stop server err:", err)
		}
		return
	}
}

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())
	initLogger()
	openDB()
	defer database.CloseDB()

	server := web.NewServer()
	if err := server.Start(); err != nil {
		log.Println(err)
		return
	}

	waitSignal(func() error {
		if err := server.Stop(); err != nil {
			logger.Warning("stop server err:", err)
		}
		server = web.NewServer()
		return server.Start()
	}, func() error {
		return server.Stop()
	})
}

func runFakenodo() {
	initLogger()
	server := fakenodo.NewServer()
	if err := server.Start(config.GetListen(), config.GetFakenodoPort()); err != nil {
		log.Println(err)
		return
	}
	waitSignal(nil, server.Stop)
}

func services() *service.Services {
	openDB()
	return service.NewServices(database.GetDB(), nil)
}

func seed() {
	initLogger()
	s := services()
	if err := s.Seeder.Seed(service.DefaultSeedAccounts); err != nil {
		fmt.Println("seed failed:", err)
		return
	}
	for _, a := range service.DefaultSeedAccounts {
		fmt.Printf("%s (%s)\n", a.Email, a.Role)
	}
}

func setRole(email, role string) {
	s := services()
	user, err := s.Users.GetByEmail(email)
	if err != nil {
		fmt.Println("get user failed:", err)
		return
	}
	dto, err := s.UserAdmin.UpdateRole(user.Id, role)
	if err != nil {
		fmt.Println("set role failed:", err)
		return
	}
	fmt.Printf("%s is now %s\n", dto.Email, dto.Role)
}

func resetTwoFactor(email string) {
	s := services()
	user, err := s.Users.GetByEmail(email)
	if err != nil {
		fmt.Println("get user failed:", err)
		return
	}
	if err := s.TwoFactor.Disable(user.Id); err != nil {
		fmt.Println("reset 2fa failed:", err)
		return
	}
	fmt.Println("two-factor authentication disabled for", user.Email)
}

func showUsers() {
	s := services()
	users, err := s.UserAdmin.ListUsers()
	if err != nil {
		fmt.Println("list users failed:", err)
		return
	}
	for _, u := range users {
		fmt.Printf("%d\t%s\t%s\t2fa=%v\t%s\n", u.Id, u.Email, u.Role, u.TwoFactorEnabled, u.Name)
	}
}

func main() {
	config.LoadEnv()

	var rootCmd = &cobra.Command{
		Use: "gameshub",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the web server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var fakenodoCmd = &cobra.Command{
		Use:   "fakenodo",
		Short: "Run the mock deposition service",
		Run: func(cmd *cobra.Command, args []string) {
			runFakenodo()
		},
	}

	var seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts",
		Run: func(cmd *cobra.Command, args []string) {
			seed()
		},
	}

	var userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "List accounts",
		Run: func(cmd *cobra.Command, args []string) {
			showUsers()
		},
	}

	var setRoleCmd = &cobra.Command{
		Use:   "set-role",
		Short: "Change the role of an account",
		Run: func(cmd *cobra.Command, args []string) {
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")
			setRole(email, role)
		},
	}
	setRoleCmd.Flags().String("email", "", "account email")
	setRoleCmd.Flags().String("role", "", "new role (admin, curator, standard, guest)")
	_ = setRoleCmd.MarkFlagRequired("email")
	_ = setRoleCmd.MarkFlagRequired("role")

	var reset2faCmd = &cobra.Command{
		Use:   "reset-2fa",
		Short: "Disable two-factor authentication of an account",
		Run: func(cmd *cobra.Command, args []string) {
			email, _ := cmd.Flags().GetString("email")
			resetTwoFactor(email)
		},
	}
	reset2faCmd.Flags().String("email", "", "account email")
	_ = reset2faCmd.MarkFlagRequired("email")

	userCmd.AddCommand(showCmd, setRoleCmd, reset2faCmd)
	rootCmd.AddCommand(runCmd, fakenodoCmd, seedCmd, userCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
