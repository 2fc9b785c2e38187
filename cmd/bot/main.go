package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"combatkeep.ai/internal/protocol"
)

var loot = []string{"IRON_SWORD", "BOW", "ARROW", "BREAD", "TORCH", "DIAMOND", "GOLD_INGOT", "SHIELD"}

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "name prefix; the pair joins as <name>-a and <name>-b")
		rounds = flag.Int("rounds", 3, "fight/death/respawn rounds")
		stacks = flag.Int("stacks", 6, "distinct stacks given to the victim each round")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	atk, err := dial(*url, *name+"-a", logger)
	if err != nil {
		logger.Fatalf("attacker: %v", err)
	}
	defer atk.conn.Close()
	vic, err := dial(*url, *name+"-b", logger)
	if err != nil {
		logger.Fatalf("victim: %v", err)
	}
	defer vic.conn.Close()

	for i := 1; i <= *rounds; i++ {
		if err := round(atk, vic, *stacks, i%2 == 0, logger); err != nil {
			logger.Fatalf("round %d: %v", i, err)
		}
	}
	logger.Printf("done rounds=%d", *rounds)
}

type bot struct {
	conn *websocket.Conn
	id   string
	name string
	log  *log.Logger
}

func dial(url, name string, logger *log.Logger) (*bot, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	b := &bot{conn: conn, name: name, log: logger}
	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	var w protocol.WelcomeMsg
	if err := b.expect(protocol.TypeWelcome, &w); err != nil {
		conn.Close()
		return nil, err
	}
	b.id = w.PlayerID
	logger.Printf("WELCOME %s player_id=%s arena=%s slots=%d tag=%ds", name, w.PlayerID, w.Arena, w.InventorySlots, w.TagSeconds)
	if err := b.expect(protocol.TypeState, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// do sends one request and reads until the STATE reply, logging any CHAT on
// the way.
func (b *bot) do(v any) (protocol.StateMsg, error) {
	var st protocol.StateMsg
	if err := b.conn.WriteJSON(v); err != nil {
		return st, err
	}
	for {
		typ, raw, err := b.read()
		if err != nil {
			return st, err
		}
		switch typ {
		case protocol.TypeChat:
			var c protocol.ChatMsg
			_ = json.Unmarshal(raw, &c)
			b.log.Printf("CHAT %s: %s", b.name, c.Text)
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(raw, &e)
			return st, fmt.Errorf("%s: %s", e.Code, e.Message)
		case protocol.TypeState:
			err := json.Unmarshal(raw, &st)
			return st, err
		}
	}
}

func (b *bot) expect(typ string, into any) error {
	got, raw, err := b.read()
	if err != nil {
		return err
	}
	if got != typ {
		return fmt.Errorf("got %s want %s", got, typ)
	}
	if into != nil {
		return json.Unmarshal(raw, into)
	}
	return nil
}

func (b *bot) read() (string, []byte, error) {
	_ = b.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, raw, err := b.conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return "", nil, err
	}
	return base.Type, raw, nil
}

func round(atk, vic *bot, stacks int, ranged bool, logger *log.Logger) error {
	for _, i := range rand.Perm(len(loot))[:min(stacks, len(loot))] {
		give := protocol.GiveMsg{Type: protocol.TypeGive, ProtocolVersion: protocol.Version, Item: loot[i], Count: 1 + rand.IntN(16)}
		if _, err := vic.do(give); err != nil {
			return fmt.Errorf("give: %w", err)
		}
	}
	st, err := atk.do(protocol.AttackMsg{Type: protocol.TypeAttack, ProtocolVersion: protocol.Version, Target: vic.id, Ranged: ranged})
	if err != nil {
		return fmt.Errorf("attack: %w", err)
	}
	logger.Printf("ATTACK ranged=%v attacker_in_combat=%v", ranged, st.InCombat)

	st, err = vic.do(protocol.DieMsg{Type: protocol.TypeDie, ProtocolVersion: protocol.Version, Cause: "bot"})
	if err != nil {
		return fmt.Errorf("die: %w", err)
	}
	logger.Printf("DIE kept=%d ground=%d", len(st.Kept), st.GroundItems)

	st, err = vic.do(protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version})
	if err != nil {
		return fmt.Errorf("respawn: %w", err)
	}
	logger.Printf("RESPAWN inventory=%d in_combat=%v", len(st.Inventory), st.InCombat)

	// Clear the inventory for the next round with an untagged death.
	if _, err := vic.do(protocol.DieMsg{Type: protocol.TypeDie, ProtocolVersion: protocol.Version, Cause: "reset"}); err != nil {
		return fmt.Errorf("reset die: %w", err)
	}
	if _, err := vic.do(protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version}); err != nil {
		return fmt.Errorf("reset respawn: %w", err)
	}
	return nil
}
