package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:3210", "Embervale server URL")
	flag.Parse()

	fmt.Println("Embervale Console")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave.")
	fmt.Println("Commands: /status, /agents, /agent <id>, /feed [n], /board, /talks, /chronicle, /start, /stop, /reset")
	fmt.Println("---")

	showStatus(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}

		fields := strings.Fields(input)
		switch fields[0] {
		case "/status":
			showStatus(*server)
		case "/agents":
			showAgents(*server)
		case "/agent":
			if len(fields) < 2 {
				printError("Usage: /agent <id>")
				continue
			}
			showAgent(*server, fields[1])
		case "/feed":
			limit := 20
			if len(fields) > 1 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					limit = n
				}
			}
			showFeed(*server, limit)
		case "/board":
			showBoard(*server)
		case "/talks":
			showTalks(*server)
		case "/chronicle":
			showChronicle(*server)
		case "/start":
			control(*server, "start")
		case "/stop":
			control(*server, "stop")
		case "/reset":
			fmt.Print("This wipes the whole village. Type 'yes' to confirm: ")
			if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "yes" {
				fmt.Println("Reset cancelled.")
				continue
			}
			control(*server, "reset")
		default:
			fmt.Println("Unknown command. Try /status, /agents, /feed, /board, /talks, /chronicle, /start, /stop, /reset.")
		}
	}
}

func getJSON(server, path string, out interface{}) error {
	resp, err := http.Get(server + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func showStatus(server string) {
	var status struct {
		Running bool `json:"running"`
		World   struct {
			Tick    int    `json:"tick"`
			Day     int    `json:"day"`
			Season  string `json:"season"`
			Weather string `json:"weather"`
			Births  int    `json:"births"`
			Deaths  int    `json:"deaths"`
		} `json:"world"`
		TimeOfDay  string `json:"time_of_day"`
		IsNight    bool   `json:"is_night"`
		Population int    `json:"population"`
	}
	if err := getJSON(server, "/api/world", &status); err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}

	state := "\033[31mpaused\033[0m"
	if status.Running {
		state = "\033[32mrunning\033[0m"
	}
	daypart := "day"
	if status.IsNight {
		daypart = "night"
	}
	fmt.Printf("Embervale is %s\n", state)
	fmt.Printf("  day %d, %s (%s), %s, %s weather\n",
		status.World.Day, status.TimeOfDay, daypart, status.World.Season, status.World.Weather)
	fmt.Printf("  tick %d | population %d | births %d | deaths %d\n",
		status.World.Tick, status.Population, status.World.Births, status.World.Deaths)
}

func showAgents(server string) {
	var villagers []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Vitals struct {
			Health float64 `json:"health"`
			Hunger float64 `json:"hunger"`
			Energy float64 `json:"energy"`
			Age    int     `json:"age"`
		} `json:"vitals"`
		Mind struct {
			Mood string `json:"mood"`
		} `json:"mind"`
		Location string `json:"location"`
		Activity string `json:"activity"`
	}
	if err := getJSON(server, "/api/agents", &villagers); err != nil {
		printError("Failed to fetch villagers: %v", err)
		return
	}
	if len(villagers) == 0 {
		fmt.Println("Nobody lives here yet.")
		return
	}
	fmt.Println("Villagers:")
	for _, v := range villagers {
		fmt.Printf("  \033[36m%s\033[0m (%s) at the %s, %s, feeling %s\n",
			v.Name, v.ID, v.Location, v.Activity, v.Mind.Mood)
		fmt.Printf("    health %.0f | hunger %.0f | energy %.0f | age %d ticks\n",
			v.Vitals.Health, v.Vitals.Hunger, v.Vitals.Energy, v.Vitals.Age)
	}
}

func showAgent(server, id string) {
	var detail struct {
		Name    string `json:"name"`
		Persona struct {
			Traits      []string `json:"traits"`
			SpeechStyle string   `json:"speech_style"`
			Backstory   string   `json:"backstory"`
		} `json:"persona"`
		Mind struct {
			Mood    string `json:"mood"`
			Thought string `json:"thought"`
		} `json:"mind"`
		Location  string `json:"location"`
		Activity  string `json:"activity"`
		Relations []struct {
			Name          string  `json:"name"`
			Strength      float64 `json:"strength"`
			Conversations int     `json:"conversations"`
		} `json:"relations"`
		Diary []struct {
			Content string `json:"content"`
			Tick    int    `json:"tick"`
		} `json:"diary"`
	}
	if err := getJSON(server, "/api/agents/"+id, &detail); err != nil {
		printError("Failed to fetch villager: %v", err)
		return
	}

	fmt.Printf("\033[36m%s\033[0m at the %s, %s\n", detail.Name, detail.Location, detail.Activity)
	if len(detail.Persona.Traits) > 0 {
		fmt.Printf("  traits: %s\n", strings.Join(detail.Persona.Traits, ", "))
	}
	if detail.Persona.Backstory != "" {
		fmt.Printf("  backstory: %s\n", detail.Persona.Backstory)
	}
	fmt.Printf("  mood: %s\n", detail.Mind.Mood)
	if detail.Mind.Thought != "" {
		fmt.Printf("  thinking: %s\n", detail.Mind.Thought)
	}
	if len(detail.Relations) > 0 {
		fmt.Println("  ties:")
		for _, t := range detail.Relations {
			fmt.Printf("    %s (strength %.2f, %d talks)\n", t.Name, t.Strength, t.Conversations)
		}
	}
	if len(detail.Diary) > 0 {
		fmt.Println("  diary:")
		for _, d := range detail.Diary {
			fmt.Printf("    [tick %d] %s\n", d.Tick, d.Content)
		}
	}
}

func showFeed(server string, limit int) {
	var events []struct {
		Type    string          `json:"type"`
		Tick    int             `json:"tick"`
		Agent   string          `json:"agent"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := getJSON(server, fmt.Sprintf("/api/feed/recent?limit=%d", limit), &events); err != nil {
		printError("Failed to fetch feed: %v", err)
		return
	}
	if len(events) == 0 {
		fmt.Println("The feed is quiet.")
		return
	}
	for _, e := range events {
		who := ""
		if e.Agent != "" {
			who = " \033[36m" + e.Agent + "\033[0m"
		}
		fmt.Printf("[tick %d] %s%s %s\n", e.Tick, e.Type, who, compact(e.Payload))
	}
}

func showBoard(server string) {
	var posts []struct {
		AgentName string `json:"agent_name"`
		Content   string `json:"content"`
		Tick      int    `json:"tick"`
	}
	if err := getJSON(server, "/api/board", &posts); err != nil {
		printError("Failed to fetch board: %v", err)
		return
	}
	if len(posts) == 0 {
		fmt.Println("The notice board is empty.")
		return
	}
	fmt.Println("Notice board:")
	for _, p := range posts {
		fmt.Printf("  [tick %d] \033[36m%s\033[0m: %s\n", p.Tick, p.AgentName, p.Content)
	}
}

func showTalks(server string) {
	var talks []struct {
		InitiatorName string `json:"initiator_name"`
		PartnerName   string `json:"partner_name"`
		Location      string `json:"location"`
		Tick          int    `json:"tick"`
		Turns         []struct {
			Speaker string `json:"speaker"`
			Line    string `json:"line"`
		} `json:"turns"`
	}
	if err := getJSON(server, "/api/conversations", &talks); err != nil {
		printError("Failed to fetch conversations: %v", err)
		return
	}
	if len(talks) == 0 {
		fmt.Println("Nobody has talked yet.")
		return
	}
	for _, t := range talks {
		fmt.Printf("[tick %d] %s and %s at the %s\n", t.Tick, t.InitiatorName, t.PartnerName, t.Location)
		for _, turn := range t.Turns {
			fmt.Printf("  \033[36m%s\033[0m: %s\n", turn.Speaker, turn.Line)
		}
	}
}

func showChronicle(server string) {
	var entries []struct {
		Day   int    `json:"day"`
		Tick  int    `json:"tick"`
		Entry string `json:"entry"`
	}
	if err := getJSON(server, "/api/chronicle", &entries); err != nil {
		printError("Failed to fetch chronicle: %v", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("The chronicle has no entries yet.")
		return
	}
	for _, e := range entries {
		fmt.Printf("\033[33mDay %d (tick %d)\033[0m\n%s\n", e.Day, e.Tick, e.Entry)
	}
}

func control(server, action string) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(server+"/api/sim/"+action, "application/json", nil)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var status struct {
		Running    bool `json:"running"`
		Population int  `json:"population"`
		World      struct {
			Tick int `json:"tick"`
		} `json:"world"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}
	state := "paused"
	if status.Running {
		state = "running"
	}
	fmt.Printf("OK: %s at tick %d, population %d\n", state, status.World.Tick, status.Population)
}

// compact renders an event payload on one line, or nothing if it is empty.
func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil || len(m) == 0 {
		return strings.TrimSpace(string(raw))
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
