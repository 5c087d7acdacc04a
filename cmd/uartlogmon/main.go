package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/uartlog/uartlog/pkg/tap/mqtt"
)

var (
	brokerURL   = flag.String("broker", "mqtt://127.0.0.1:1883", "MQTT broker URL.")
	topicPrefix = flag.String("topic", "uartlog", "Topic prefix the logger publishes under.")
)

type monitor struct {
	client paho.Client
	prefix string
}

func newMonitor() (*monitor, error) {
	opts, err := mqtt.ClientOptionsFromURL(*brokerURL, mqtt.ClientID("uartlogmon"))
	if err != nil {
		return nil, err
	}
	m := &monitor{client: paho.NewClient(opts), prefix: *topicPrefix}
	token := m.client.Connect()
	token.Wait()
	return m, token.Error()
}

func (m *monitor) status(c *ishell.Context) {
	topic := m.prefix + "/status"
	stateCh := make(chan string, 1)
	token := m.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		select {
		case stateCh <- string(msg.Payload()):
		default:
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.Err(err)
		return
	}
	defer m.client.Unsubscribe(topic)
	select {
	case state := <-stateCh:
		c.Printf("logger is %s\n", state)
	case <-time.After(2 * time.Second):
		c.Println("no status published, logger is offline or has no MQTT tap")
	}
}

func (m *monitor) watch(c *ishell.Context) {
	topic := m.prefix + "/log"
	token := m.client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		fmt.Print(string(msg.Payload()))
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.Err(err)
		return
	}
	c.Println("watching live log data, press enter to stop")
	c.ReadLine()
	m.client.Unsubscribe(topic)
}

func main() {
	flag.Parse()
	m, err := newMonitor()
	if err != nil {
		log.Fatalf("connect %q failed: %v", *brokerURL, err)
	}
	defer m.client.Disconnect(250)

	shell := ishell.New()
	shell.SetPrompt(fmt.Sprintf("[%s] > ", m.prefix))
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show whether the logger's remote tap is online",
		Func: m.status,
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "watch",
		Help: "stream live log data until enter is pressed",
		Func: m.watch,
	})

	if args := flag.Args(); len(args) > 0 {
		if err := shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	shell.Run()
}
