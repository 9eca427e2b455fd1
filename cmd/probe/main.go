// probe - отладочная утилита: строит описание контроллера, печатает его и,
// по флагу -wait, ждет первое сообщение EGM и выводит позиции суставов.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	abb "github.com/iwtcode/abbAdapter"
	"github.com/iwtcode/abbAdapter/egm"
	"github.com/iwtcode/abbAdapter/internal/hardware"
	"github.com/iwtcode/abbAdapter/internal/middleware/logging"
	"github.com/iwtcode/abbAdapter/rws"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:]))
}

// run выполняет шаги проверки и возвращает код завершения процесса.
func run(args []string) int {
	// 1) Загрузка конфигурации
	cfg := abb.Load()
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	file := fs.String("file", cfg.HardwareFile, "Hardware description YAML")
	wait := fs.Duration("wait", 0, "Wait for the first EGM message (0 disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := logging.NewLogger(&logging.Config{Enabled: !strings.EqualFold(cfg.LogLevel, "off"), Level: cfg.LogLevel}, "Probe")
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// 2) Описание оборудования
	info, err := hardware.LoadHardwareInfo(*file)
	if err != nil {
		log.Printf("Не удалось прочитать описание оборудования: %v", err)
		return 1
	}
	if err := hardware.ValidateInterfaces(info.Joints, logger); err != nil {
		log.Printf("Некорректные интерфейсы суставов: %v", err)
		return 1
	}

	// 3) Описание контроллера
	builder := hardware.SelectDescriptionBuilder(info, rws.NewQuerier(cfg.RWSTimeout, logger), logger)
	fmt.Printf("Источник описания: %s\n", builder.Mode())
	desc, err := builder.Build(ctx, info)
	if err != nil {
		log.Printf("Не удалось построить описание контроллера: %v", err)
		return 1
	}
	fmt.Println("\n--- Описание контроллера ---")
	fmt.Print(desc.Summary())

	configs, err := hardware.BuildChannelConfigurations(desc, info.HardwareParameters, logger)
	if err != nil {
		log.Printf("Не удалось сформировать конфигурации каналов: %v", err)
		return 1
	}
	fmt.Println("\n--- Каналы EGM ---")
	for _, c := range configs {
		fmt.Printf("Группа %q -> UDP порт %d\n", c.Group.Name, c.Port)
	}

	if *wait <= 0 {
		return 0
	}

	// 4) Ожидание первого сообщения
	motion, err := hardware.InitializeMotionData(desc)
	if err != nil {
		log.Printf("Не удалось подготовить данные движения: %v", err)
		return 1
	}
	manager, err := egm.NewManager(configs, logger, nil)
	if err != nil {
		log.Printf("Не удалось открыть каналы EGM: %v", err)
		return 1
	}
	defer manager.Close()

	fmt.Printf("\nОжидание сообщения EGM (до %s)...\n", *wait)
	deadline := time.Now().Add(*wait)
	for !manager.WaitForMessage(100 * time.Millisecond) {
		if ctx.Err() != nil || time.Now().After(deadline) {
			fmt.Println("Сообщение от контроллера не получено")
			return 1
		}
	}
	manager.Read(motion)

	fmt.Println("\n--- Состояние суставов ---")
	for _, group := range motion.Groups {
		for _, unit := range group.Units {
			for _, joint := range unit.Joints {
				fmt.Printf("%-16s position=%9.4f velocity=%9.4f\n",
					hardware.NormalizeJointName(joint.Name), joint.State.Position, joint.State.Velocity)
			}
		}
	}
	return 0
}
