package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(viableCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(proposalCmd)

	viableCmd.Flags().String("week", "", "ISO week, e.g. 2026-W42")
	viableCmd.Flags().Int("proposer-min", 0, "Minimum proposer players (0 = full roster)")
	viableCmd.Flags().Int("opponent-min", 0, "Minimum opponent players (0 = full roster)")
	_ = viableCmd.MarkFlagRequired("week")

	compareCmd.Flags().StringSlice("candidates", nil, "Opponent team ids")
	compareCmd.Flags().StringSlice("weeks", nil, "ISO weeks (default: current week)")
	compareCmd.Flags().Bool("auto", false, "Compare against every team sharing a division")

	proposalCmd.AddCommand(proposalGetCmd, proposalListCmd, proposalCreateCmd, proposalConfirmCmd, proposalWithdrawCmd, proposalCancelCmd)
	proposalCmd.PersistentFlags().String("team", "", "Acting team id")
	proposalCmd.PersistentFlags().String("user", "", "Acting user id")
	proposalCreateCmd.Flags().String("week", "", "ISO week, e.g. 2026-W42")
	proposalCreateCmd.Flags().String("game-type", "official", "official or practice")
	proposalCreateCmd.Flags().Bool("standin", false, "Play with a standin (practice only)")
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", nil)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/metrics", nil)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Get lifetime scheduling counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/stats", nil)
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Complete scheduled matches whose slot has been played",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/process", nil)
	},
}

var viableCmd = &cobra.Command{
	Use:   "viable <proposer> <opponent>",
	Short: "List the slots where both teams can field a side",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		week, _ := cmd.Flags().GetString("week")
		proposerMin, _ := cmd.Flags().GetInt("proposer-min")
		opponentMin, _ := cmd.Flags().GetInt("opponent-min")
		q := url.Values{}
		q.Set("proposer", args[0])
		q.Set("opponent", args[1])
		q.Set("week", week)
		q.Set("proposer_min", strconv.Itoa(proposerMin))
		q.Set("opponent_min", strconv.Itoa(opponentMin))
		return performRequest(http.MethodGet, "/viable?"+q.Encode(), nil)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare <team>",
	Short: "Show every candidate opponent per slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, _ := cmd.Flags().GetStringSlice("candidates")
		weeks, _ := cmd.Flags().GetStringSlice("weeks")
		auto, _ := cmd.Flags().GetBool("auto")
		q := url.Values{}
		q.Set("team", args[0])
		if auto {
			q.Set("auto", "true")
		}
		if len(candidates) > 0 {
			q.Set("candidates", strings.Join(candidates, ","))
		}
		if len(weeks) > 0 {
			q.Set("weeks", strings.Join(weeks, ","))
		}
		return performRequest(http.MethodGet, "/comparison?"+q.Encode(), nil)
	},
}

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Work with match proposals",
}

var proposalGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/proposals/"+url.PathEscape(args[0]), nil)
	},
}

var proposalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active proposals, optionally for the --team",
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/proposals"
		if team, _ := cmd.Flags().GetString("team"); team != "" {
			endpoint += "?team=" + url.QueryEscape(team)
		}
		return performRequest(http.MethodGet, endpoint, nil)
	},
}

var proposalCreateCmd = &cobra.Command{
	Use:   "create <opponent>",
	Short: "Propose a match to an opponent on behalf of --team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, user := actor(cmd)
		week, _ := cmd.Flags().GetString("week")
		gameType, _ := cmd.Flags().GetString("game-type")
		standin, _ := cmd.Flags().GetBool("standin")
		return performRequest(http.MethodPost, "/proposals", map[string]any{
			"proposer_team_id": team,
			"opponent_team_id": args[0],
			"week":             week,
			"game_type":        gameType,
			"proposer_standin": standin,
			"user_id":          user,
		})
	},
}

var proposalConfirmCmd = &cobra.Command{
	Use:   "confirm <id> <slot>",
	Short: "Confirm a slot, e.g. mon_2000",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, user := actor(cmd)
		return performRequest(http.MethodPost, "/proposals/"+url.PathEscape(args[0])+"/confirm", map[string]any{
			"team_id": team, "user_id": user, "slot": args[1],
		})
	},
}

var proposalWithdrawCmd = &cobra.Command{
	Use:   "withdraw <id> <slot>",
	Short: "Withdraw a confirmed slot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, user := actor(cmd)
		return performRequest(http.MethodPost, "/proposals/"+url.PathEscape(args[0])+"/withdraw", map[string]any{
			"team_id": team, "user_id": user, "slot": args[1],
		})
	},
}

var proposalCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a proposal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		team, user := actor(cmd)
		return performRequest(http.MethodPost, "/proposals/"+url.PathEscape(args[0])+"/cancel", map[string]any{
			"team_id": team, "user_id": user,
		})
	},
}

func actor(cmd *cobra.Command) (string, string) {
	team, _ := cmd.Flags().GetString("team")
	user, _ := cmd.Flags().GetString("user")
	return team, user
}

func performRequest(method, endpoint string, body any) error {
	target, err := url.Parse(host + endpoint)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if dryRun {
		q := target.Query()
		q.Set("dry_run", "true")
		target.RawQuery = q.Encode()
	}
	fmt.Printf("Making %s request to %s\n", method, target)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
