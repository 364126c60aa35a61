package main

import (
	"context"
	"log"
	"time"

	"cc-intelligence-be/internal/orchestrator"
	"cc-intelligence-be/internal/pkg/logger"
	"cc-intelligence-be/internal/repository/memory"
	"cc-intelligence-be/pkg/intent"
	"cc-intelligence-be/pkg/research"
	"cc-intelligence-be/pkg/research/stream"
	"cc-intelligence-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
)

// End-to-end walkthrough of the guided research flow against the simulated
// stream provider. No external services required.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sysLogger := logger.NewIsolatedLogger("logs/simulation.log")

	repo := memory.NewSessionRepository(256 * 1024)
	store := session.NewStore(repo, sysLogger, 200*time.Millisecond, 50)
	registry := research.NewRegistry()
	resolver := intent.NewResolver("", 3*time.Second, sysLogger)
	streams := stream.NewSimulatedClient(registry, 120*time.Millisecond)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	orch := orchestrator.New(resolver, streams, store, registry, pubSub, nil, sysLogger)
	go orch.Run(ctx)

	// Count snapshot updates flowing over the bus.
	updates, err := pubSub.Subscribe(ctx, orchestrator.SessionUpdatesTopic)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	updateCount := 0
	go func() {
		for msg := range updates {
			updateCount++
			msg.Ack()
		}
	}()

	color.Cyan("🚀 Guided Research Simulation\n")

	color.Yellow("\n[1] Utterance with a resolvable company")
	if err := orch.SendUtterance(ctx, "Tell me about shopify.com competitive landscape"); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	waitForIdle(orch)
	printSession(orch.Snapshot())

	color.Yellow("\n[2] Explicit area selection, requested twice in a row")
	if err := orch.SelectArea(research.AreaTechStack); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	// Second request for the same in-flight area is a silent no-op.
	if err := orch.SelectArea(research.AreaTechStack); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	waitForIdle(orch)
	snap := orch.Snapshot()
	runs := 0
	for i := range snap.Transcript {
		if snap.Transcript[i].Finding != nil && snap.Transcript[i].Finding.AreaID == research.AreaTechStack {
			runs++
		}
	}
	color.Green("Tech stack research ran %d time(s)", runs)
	printSession(snap)

	color.Yellow("\n[4] Switching company persists the old session")
	if err := orch.SwitchCompany("Acme Corp"); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	if err := orch.SendUtterance(ctx, "Acme Corp is coming up for renewal soon"); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	waitForIdle(orch)
	printSession(orch.Snapshot())

	color.Yellow("\n[5] Switching back restores the ledger")
	if err := orch.SwitchCompany("shopify.com"); err != nil {
		color.Red("Failed: %v", err)
		return
	}
	printSession(orch.Snapshot())

	color.Green("\nDone. %d snapshot updates published.", updateCount)
}

// waitForIdle polls until no transcript entry is still streaming.
func waitForIdle(orch *orchestrator.Orchestrator) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap := orch.Snapshot()
		busy := false
		if snap != nil {
			for i := range snap.Transcript {
				if snap.Transcript[i].Streaming != nil {
					busy = true
					break
				}
			}
		}
		if snap != nil && !busy {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	color.Red("Timed out waiting for research to settle")
}

func printSession(snap *session.Session) {
	if snap == nil {
		color.Red("No active session")
		return
	}
	color.Cyan("Session for %q", snap.Company)
	for i := range snap.Transcript {
		e := &snap.Transcript[i]
		log.Printf("  [%s] %s", e.Role, e.Text)
	}
	for i := range snap.Ledger {
		l := &snap.Ledger[i]
		color.Green("  ✔ %s (%s)", l.Title, l.AreaID)
	}
}
