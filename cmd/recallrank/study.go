package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/colmduffy/recallrank/internal/domain"
	"github.com/colmduffy/recallrank/internal/scheduler"
)

// runMenu drives the interactive study loop on stdin/stdout.
func runMenu(sched *scheduler.Scheduler, sessionSize int, minPriority float64) {
	in := bufio.NewScanner(os.Stdin)

	printHeader("Smart Flashcard Review System")
	fmt.Println()
	fmt.Println("  Cards with lower predicted recall are shown first.")

	for {
		fmt.Println()
		fmt.Printf("  1. Start study session (%d cards)\n", sessionSize)
		fmt.Println("  2. Quick review (3 cards)")
		fmt.Println("  3. Long session (10 cards)")
		fmt.Println("  4. View all cards")
		fmt.Println("  5. Reset progress")
		fmt.Println("  6. Quit")
		fmt.Println()

		choice := prompt(in, "  Select option (1-6): ")
		switch choice {
		case "1":
			runStudySession(sched, in, sessionSize, minPriority)
		case "2":
			runStudySession(sched, in, 3, minPriority)
		case "3":
			runStudySession(sched, in, 10, minPriority)
		case "4":
			if err := printAllCards(sched); err != nil {
				fmt.Printf("  Error: %v\n", err)
			}
		case "5":
			if prompt(in, "  Reset all progress? (y/n): ") == "y" {
				if err := sched.Reset(); err != nil {
					fmt.Printf("  Error: %v\n", err)
				} else {
					fmt.Println("  Progress reset!")
				}
			}
		case "6", "q", "":
			fmt.Println("\n  Thanks for studying! See you next time.")
			return
		default:
			fmt.Println("  Invalid option. Please try again.")
		}
	}
}

func runStudySession(sched *scheduler.Scheduler, in *bufio.Scanner, n int, minPriority float64) {
	cards, err := sched.Schedule(n, minPriority)
	if err != nil {
		fmt.Printf("  Error scheduling cards: %v\n", err)
		return
	}
	if len(cards) == 0 {
		fmt.Println("\n  No cards to review! Add some flashcards first.")
		return
	}

	printHeader("Study Session")
	fmt.Printf("\n  Cards to review: %d\n", len(cards))
	fmt.Println("  Type 'q' to quit, 's' to skip a card.")

	for i, sc := range cards {
		printCard(sc, i+1, len(cards))

		answer := prompt(in, "  Your answer: ")
		if answer == "q" {
			fmt.Println("\n  Quitting session...")
			break
		}
		if answer == "s" {
			fmt.Println("  Skipped.")
			continue
		}

		fmt.Printf("\n  Answer: %s\n", sc.Card.Answer)
		correct := promptYesNo(in, "\n  Were you correct? (y/n): ")

		if err := sched.RecordAnswer(sc.Card.CardID, correct); err != nil {
			fmt.Printf("  Error recording answer: %v\n", err)
			continue
		}
		if correct {
			fmt.Println("\n  Correct! Your recall estimate for this card goes up.")
		} else {
			fmt.Println("\n  Incorrect. This card will be prioritized next time.")
		}

		if i < len(cards)-1 {
			prompt(in, "\n  Press Enter for next card...")
		}
	}

	stats := sched.SessionStats()
	printHeader("Session Complete!")
	fmt.Println()
	fmt.Printf("  Cards reviewed today: %d\n", stats.Total)
	fmt.Printf("  Correct answers: %d\n", stats.Correct)
	fmt.Printf("  Accuracy: %.0f%%\n", stats.Accuracy*100)
	fmt.Println("\n  Your progress has been saved!")
}

func printAllCards(sched *scheduler.Scheduler) error {
	cards, err := sched.Schedule(100, 0)
	if err != nil {
		return err
	}

	printHeader("All Flashcards")
	fmt.Printf("\n  %-3s %-38s %-8s %-8s %s\n", "#", "Question", "Recall", "Reviews", "Diff")
	fmt.Println("  " + strings.Repeat("-", 65))
	for i, sc := range cards {
		q := sc.Card.Question
		if len(q) > 35 {
			q = q[:32] + "..."
		}
		fmt.Printf("  %-3d %-38s %5.0f%%  %6d   %s\n",
			i+1, q, sc.RecallProbability*100, sc.Card.NumReviews, stars(sc.Card.Difficulty))
	}
	fmt.Println()
	return nil
}

func printCard(sc domain.ScheduledCard, num, total int) {
	fmt.Println()
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("  Card %d/%d  |  Difficulty: %s\n", num, total, stars(sc.Card.Difficulty))
	fmt.Printf("  Predicted recall: %.0f%% (%s)\n", sc.RecallProbability*100, sc.PriorityReason())
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("\n  Q: %s\n\n", sc.Card.Question)
}

func printHeader(title string) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("  %s\n", title)
	fmt.Println(strings.Repeat("=", 60))
}

func stars(difficulty int) string {
	return strings.Repeat("*", difficulty) + strings.Repeat(".", 5-difficulty)
}

func prompt(in *bufio.Scanner, msg string) string {
	fmt.Print(msg)
	if !in.Scan() {
		return "q"
	}
	return strings.ToLower(strings.TrimSpace(in.Text()))
}

func promptYesNo(in *bufio.Scanner, msg string) bool {
	for {
		switch prompt(in, msg) {
		case "y", "yes", "1":
			return true
		case "n", "no", "0", "q":
			return false
		default:
			fmt.Println("  Please enter 'y' or 'n'")
		}
	}
}
