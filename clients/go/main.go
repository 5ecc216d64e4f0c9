// agrolink is a command line client for the AgrolinkHub chat API.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/clients/go/agrolink"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := agrolink.NewClient(os.Getenv("AGROLINK_URL"))
	if token := os.Getenv("AGROLINK_TOKEN"); token != "" {
		client.Token = token
	}
	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health()
		exitOnError(err)
		printJSON(resp)

	case "register":
		if len(os.Args) < 5 {
			fmt.Fprintln(os.Stderr, "Usage: agrolink register <name> <email> <password> [role]")
			os.Exit(1)
		}
		req := agrolink.RegisterRequest{Name: os.Args[2], Email: os.Args[3], Password: os.Args[4]}
		if len(os.Args) > 5 {
			req.Role = os.Args[5]
		}
		resp, err := client.Register(req)
		exitOnError(err)
		exitOnError(client.SaveSession())
		fmt.Printf("Registered as: %s (%s)\n", resp.User.ID, resp.User.Role)

	case "login":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "Usage: agrolink login <email> <password>")
			os.Exit(1)
		}
		resp, err := client.Login(os.Args[2], os.Args[3])
		exitOnError(err)
		exitOnError(client.SaveSession())
		fmt.Printf("Logged in as: %s\n", resp.User.Name)

	case "inbox":
		convos, err := client.Conversations()
		exitOnError(err)
		for _, c := range convos {
			name := "?"
			if c.OtherUser != nil {
				name = c.OtherUser.Name
			}
			fmt.Printf("  %s  %-20s %s\n", c.RoomID, name, c.LastMessage.Text)
		}

	case "read":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: agrolink read <room_id>")
			os.Exit(1)
		}
		resp, err := client.GetHistory(os.Args[2])
		exitOnError(err)
		for _, msg := range resp.Messages {
			from := msg.SenderID
			if len(from) > 8 {
				from = from[:8]
			}
			fmt.Printf("[%s] %s: %s\n", msg.SentAt.Local().Format("2006-01-02 15:04:05"), from, msg.Text)
		}

	case "room":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: agrolink room <user_id>")
			os.Exit(1)
		}
		roomID, err := client.RoomWith(os.Args[2])
		exitOnError(err)
		fmt.Println(roomID)

	case "who":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: agrolink who <user_id>")
			os.Exit(1)
		}
		resp, err := client.GetUser(os.Args[2])
		exitOnError(err)
		printJSON(resp)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`agrolink - AgrolinkHub chat client

Usage: agrolink <command> [options]

Commands:
  register <name> <email> <password> [role]   Create an account
  login <email> <password>                    Log in and save the session
  inbox                                       List conversations
  read <room_id>                              Show a room's history
  room <user_id>                              Print the room shared with a user
  who <user_id>                               Get a user profile
  health                                      Check server health

Environment:
  AGROLINK_URL      Server URL (default: http://localhost:8080)
  AGROLINK_TOKEN    Bearer token (overrides the saved session)
  AGROLINK_CONFIG   Session directory (default: ~/.agrolink)`)
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
