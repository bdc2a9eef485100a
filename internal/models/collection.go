package models

import "fmt"

// Collection — закрытое перечисление реплицируемых коллекций.
// Диспетчеризация по коллекции идет через этот тип, а не через
// произвольные строки: неизвестное имя отсекается в ParseCollection
// до обращения к хранилищу.
type Collection string

const (
	CollectionPages   Collection = "pages"   // страницы (доски)
	CollectionWidgets Collection = "widgets" // виджеты на странице
	CollectionLinks   Collection = "links"   // связи между виджетами страницы
	CollectionItems   Collection = "items"   // элементы внутри виджета (например, строки списка)
)

// Collections возвращает все коллекции в порядке зависимостей:
// родительские коллекции раньше тех, кто на них ссылается.
func Collections() []Collection {
	return []Collection{CollectionPages, CollectionWidgets, CollectionLinks, CollectionItems}
}

// ParseCollection валидирует имя коллекции из внешнего запроса.
func ParseCollection(name string) (Collection, error) {
	switch c := Collection(name); c {
	case CollectionPages, CollectionWidgets, CollectionLinks, CollectionItems:
		return c, nil
	default:
		return "", fmt.Errorf("unknown collection %q", name)
	}
}

// DependsOn возвращает коллекции, чьи записи данная коллекция
// референсит по id. Репликация родителя должна завершить начальный
// проход раньше, чем начнет реплицироваться зависимая коллекция,
// иначе локально виден ребенок без родителя.
func (c Collection) DependsOn() []Collection {
	switch c {
	case CollectionWidgets, CollectionLinks:
		return []Collection{CollectionPages}
	case CollectionItems:
		return []Collection{CollectionWidgets}
	default:
		return nil
	}
}

// String реализует fmt.Stringer.
func (c Collection) String() string {
	return string(c)
}
