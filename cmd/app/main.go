// ABB EGM adapter: конфигурирует аппаратный интерфейс, устанавливает связь с контроллером
// и крутит цикл управления, отдавая состояние через HTTP API и метрики Prometheus.
package main

import "github.com/iwtcode/abbAdapter/internal/app"

func main() {
	// Создаем и запускаем новый экземпляр приложения fx
	app.New().Run()
}
