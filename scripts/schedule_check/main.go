// Command schedule_check pulls every assignment for a scope from a
// running API instance and reports double-bookings and per-day load.
// Exit code 1 means at least one conflict was found.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

type assignment struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	ClassName   string `json:"class_name"`
	SubjectName string `json:"subject_name"`
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	DayOfWeek   string `json:"day_of_week"`
	SlotID      string `json:"period_slot_id"`
	SlotName    string `json:"slot_name"`
}

type envelope struct {
	Data       []assignment `json:"data"`
	Pagination *struct {
		Page       int `json:"page"`
		PageSize   int `json:"page_size"`
		TotalCount int `json:"total_count"`
	} `json:"pagination"`
}

type conflict struct {
	kind  string
	key   string
	items []assignment
}

func main() {
	var (
		base       string
		token      string
		schoolYear string
		semester   string
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token for authenticated endpoints")
	flag.StringVar(&schoolYear, "school-year", "", "Scope school year, e.g. 2025/2026")
	flag.StringVar(&semester, "semester", "ODD", "Scope semester (ODD or EVEN)")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if schoolYear == "" {
		log.Fatal("-school-year is required")
	}

	client := &http.Client{Timeout: timeout}
	assignments, err := fetchAll(client, base, token, schoolYear, semester)
	if err != nil {
		log.Fatalf("failed to fetch assignments: %v", err)
	}

	conflicts := findConflicts(assignments)
	printReport(schoolYear, semester, assignments, conflicts)

	if len(conflicts) > 0 {
		os.Exit(1)
	}
}

func fetchAll(client *http.Client, base, token, schoolYear, semester string) ([]assignment, error) {
	var all []assignment
	page := 1
	for {
		batch, total, err := fetchPage(client, base, token, schoolYear, semester, page)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) == 0 || len(all) >= total {
			return all, nil
		}
		page++
	}
}

func fetchPage(client *http.Client, base, token, schoolYear, semester string, page int) ([]assignment, int, error) {
	query := url.Values{}
	query.Set("schoolYear", schoolYear)
	query.Set("semester", semester)
	query.Set("page", fmt.Sprint(page))
	query.Set("limit", "100")

	endpoint := strings.TrimRight(base, "/") + "/api/v1/schedules?" + query.Encode()
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("GET %s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, err
	}
	total := len(env.Data)
	if env.Pagination != nil {
		total = env.Pagination.TotalCount
	}
	return env.Data, total, nil
}

// findConflicts groups assignments by (teacher, day, slot) and
// (class, day, slot); any group with more than one entry is a
// double-booking.
func findConflicts(assignments []assignment) []conflict {
	teacherSlots := map[string][]assignment{}
	classSlots := map[string][]assignment{}
	for _, a := range assignments {
		tk := a.TeacherID + "|" + a.DayOfWeek + "|" + a.SlotID
		ck := a.ClassID + "|" + a.DayOfWeek + "|" + a.SlotID
		teacherSlots[tk] = append(teacherSlots[tk], a)
		classSlots[ck] = append(classSlots[ck], a)
	}

	var conflicts []conflict
	for key, items := range teacherSlots {
		if len(items) > 1 {
			conflicts = append(conflicts, conflict{kind: "TEACHER", key: key, items: items})
		}
	}
	for key, items := range classSlots {
		if len(items) > 1 {
			conflicts = append(conflicts, conflict{kind: "CLASS", key: key, items: items})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].kind != conflicts[j].kind {
			return conflicts[i].kind < conflicts[j].kind
		}
		return conflicts[i].key < conflicts[j].key
	})
	return conflicts
}

func printReport(schoolYear, semester string, assignments []assignment, conflicts []conflict) {
	fmt.Printf("Schedule check for %s %s\n", schoolYear, semester)
	fmt.Println("==============================")
	fmt.Printf("Assignments: %d\n", len(assignments))

	byDay := map[string]int{}
	for _, a := range assignments {
		byDay[a.DayOfWeek]++
	}
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		fmt.Printf("  %-9s %d\n", day, byDay[day])
	}

	if len(conflicts) == 0 {
		fmt.Println("No double-bookings found.")
		return
	}

	fmt.Printf("Double-bookings: %d\n", len(conflicts))
	for _, c := range conflicts {
		first := c.items[0]
		who := first.TeacherName
		if c.kind == "CLASS" {
			who = first.ClassName
		}
		fmt.Printf("[%s] %s at %s %s:\n", c.kind, who, first.DayOfWeek, first.SlotName)
		for _, a := range c.items {
			fmt.Printf("  %s: %s / %s (%s)\n", a.ID, a.ClassName, a.SubjectName, a.TeacherName)
		}
	}
}
