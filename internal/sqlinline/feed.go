package sqlinline

const QNotifyChange = `--sql 8187d589-52f2-4aee-8f1b-8128807aa915
select pg_notify($1::text, $2::text);
`
