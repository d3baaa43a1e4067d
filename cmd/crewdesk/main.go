package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/crewdesk/crewdesk/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "team":
		err = commandTeam(args)
	case "project":
		err = commandProject(args)
	case "task":
		err = commandTask(args)
	case "plans":
		err = commandPlans(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	} else if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("login successful")
	return nil
}

func commandTeam(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crewdesk team [list|create|members]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return teamList(args[1:])
	case "create":
		return teamCreate(args[1:])
	case "members":
		return teamMembers(args[1:])
	default:
		return fmt.Errorf("unknown team command: %s", sub)
	}
}

func teamList(args []string) error {
	fs := flag.NewFlagSet("team list", flag.ExitOnError)
	fs.Parse(args)

	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	teams, err := client.ListTeams(ctx, token)
	if err != nil {
		return err
	}
	for _, t := range teams {
		fmt.Printf("%s\t%s\t%s\n", t.ID, t.Name, t.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func teamCreate(args []string) error {
	fs := flag.NewFlagSet("team create", flag.ExitOnError)
	name := fs.String("name", "", "Team name")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	team, err := client.CreateTeam(ctx, token, *name)
	if err != nil {
		return err
	}
	fmt.Printf("team created: %s (%s)\n", team.ID, team.Name)
	return nil
}

func teamMembers(args []string) error {
	fs := flag.NewFlagSet("team members", flag.ExitOnError)
	teamID := fs.String("team", "", "Team identifier")
	fs.Parse(args)

	if strings.TrimSpace(*teamID) == "" {
		return errors.New("--team is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	members, err := client.ListMembers(ctx, token, *teamID)
	if err != nil {
		return err
	}
	for _, m := range members {
		fmt.Printf("%s\t%s\n", m.UserID, m.Role)
	}
	return nil
}

func commandProject(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crewdesk project [list|create]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return projectList(args[1:])
	case "create":
		return projectCreate(args[1:])
	default:
		return fmt.Errorf("unknown project command: %s", sub)
	}
}

func projectList(args []string) error {
	fs := flag.NewFlagSet("project list", flag.ExitOnError)
	teamID := fs.String("team", "", "Team identifier")
	limit := fs.Int("limit", 0, "Maximum number of projects to display")
	fs.Parse(args)

	if strings.TrimSpace(*teamID) == "" {
		return errors.New("--team is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	projects, err := client.ListProjects(ctx, token, *teamID)
	if err != nil {
		return err
	}
	count := len(projects)
	if *limit > 0 && *limit < count {
		count = *limit
	}
	for i := 0; i < count; i++ {
		p := projects[i]
		fmt.Printf("%s\t%s\t%s\n", p.ID, p.Name, p.Status)
	}
	return nil
}

func projectCreate(args []string) error {
	fs := flag.NewFlagSet("project create", flag.ExitOnError)
	teamID := fs.String("team", "", "Team identifier")
	name := fs.String("name", "", "Project name")
	description := fs.String("description", "", "Optional description")
	fs.Parse(args)

	if strings.TrimSpace(*teamID) == "" {
		return errors.New("--team is required")
	}
	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	input := apiclient.CreateProjectInput{
		TeamID:      *teamID,
		Name:        *name,
		Description: *description,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	project, err := client.CreateProject(ctx, token, input)
	if err != nil {
		return err
	}
	fmt.Printf("project created: %s (%s)\n", project.ID, project.Name)
	return nil
}

func commandTask(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crewdesk task [list|create]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return taskList(args[1:])
	case "create":
		return taskCreate(args[1:])
	default:
		return fmt.Errorf("unknown task command: %s", sub)
	}
}

func taskList(args []string) error {
	fs := flag.NewFlagSet("task list", flag.ExitOnError)
	projectID := fs.String("project", "", "Project identifier")
	fs.Parse(args)

	if strings.TrimSpace(*projectID) == "" {
		return errors.New("--project is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tasks, err := client.ListTasks(ctx, token, *projectID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Title)
	}
	return nil
}

func taskCreate(args []string) error {
	fs := flag.NewFlagSet("task create", flag.ExitOnError)
	projectID := fs.String("project", "", "Project identifier")
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Optional description")
	priority := fs.String("priority", "medium", "Priority (low|medium|high|urgent)")
	assignee := fs.String("assignee", "", "Optional assignee user ID")
	fs.Parse(args)

	if strings.TrimSpace(*projectID) == "" {
		return errors.New("--project is required")
	}
	if strings.TrimSpace(*title) == "" {
		return errors.New("--title is required")
	}
	cfg, token, err := requireSession()
	if err != nil {
		return err
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	input := apiclient.CreateTaskInput{
		Title:       *title,
		Description: *description,
		Priority:    *priority,
		AssigneeID:  *assignee,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	task, err := client.CreateTask(ctx, token, *projectID, input)
	if err != nil {
		return err
	}
	fmt.Printf("task created: %s (%s)\n", task.ID, task.Title)
	return nil
}

func commandPlans(args []string) error {
	fs := flag.NewFlagSet("plans", flag.ExitOnError)
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	plans, err := client.Plans(ctx)
	if err != nil {
		return err
	}
	for _, p := range plans {
		fmt.Printf("%s\t%s\n", p.Tier, string(p.Limits))
	}
	return nil
}

func requireSession() (cliConfig, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return cliConfig{}, "", errors.New("please login first using 'crewdesk login'")
	}
	return cfg, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: "http://localhost:4000"}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:4000"
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "crewdesk", "config.json"), nil
}

func printUsage() {
	fmt.Printf("crewdesk CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	crewdesk login --email user@example.com [--password secret] [--api http://localhost:4000]
	crewdesk team list
	crewdesk team create --name <name>
	crewdesk team members --team <team-id>
	crewdesk project list --team <team-id> [--limit N]
	crewdesk project create --team <team-id> --name <name> [--description text]
	crewdesk task list --project <project-id>
	crewdesk task create --project <project-id> --title <title> [--priority medium] [--assignee user-id]
	crewdesk plans
	crewdesk version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
