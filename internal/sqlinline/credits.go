package sqlinline

// QDebitCredits spends credits only when the balance covers the cost. It
// returns no row when the debit is denied.
const QDebitCredits = `--sql abfa6a68-5b36-4ad9-8663-61b94ee0bfb5
with
input as (
  select
    $1::text  as user_id,
    $2::text  as resource_type,
    $3::int   as cost,
    $4::jsonb as metadata
),
debited as (
  update credit_accounts a
  set used_credits = a.used_credits + (select cost from input),
      updated_at = now()
  where a.user_id = (select user_id from input)
    and a.total_credits - a.used_credits >= (select cost from input)
  returning a.user_id, a.total_credits - a.used_credits as available
),
ins_tx as (
  insert into credit_transactions (id, user_id, amount, resource_type, metadata, created_at)
  select gen_random_uuid(), d.user_id, -(select cost from input), (select resource_type from input), (select metadata from input), now()
  from debited d
  returning id
)
select d.available, t.id::text
from debited d, ins_tx t;
`

const QGrantCredits = `--sql 89214170-b06b-40e6-86d0-3f2964e258b4
with
acct as (
  insert into credit_accounts (user_id, total_credits, used_credits, updated_at)
  values ($1::text, $2::int, 0, now())
  on conflict (user_id) do update set
    total_credits = credit_accounts.total_credits + excluded.total_credits,
    updated_at = now()
  returning user_id, total_credits, used_credits, updated_at
),
ins_tx as (
  insert into credit_transactions (id, user_id, amount, resource_type, metadata, created_at)
  select gen_random_uuid(), user_id, $2::int, $3::text, $4::jsonb, now()
  from acct
  returning id
)
select a.user_id, a.total_credits, a.used_credits, a.updated_at
from acct a, ins_tx t;
`

const QRefundCredits = `--sql ff6f67c4-05ce-4904-9507-a7bc2b7d9eaa
with
acct as (
  update credit_accounts
  set used_credits = used_credits - $2::int,
      updated_at = now()
  where user_id = $1::text and used_credits >= $2::int
  returning user_id, total_credits, used_credits, updated_at
),
ins_tx as (
  insert into credit_transactions (id, user_id, amount, resource_type, metadata, created_at)
  select gen_random_uuid(), user_id, $2::int, $3::text, $4::jsonb, now()
  from acct
  returning id
)
select a.user_id, a.total_credits, a.used_credits, a.updated_at
from acct a, ins_tx t;
`

const QSelectCreditAccount = `--sql 3aa0432e-8cd9-43fa-b1eb-cf1d427b96da
select user_id, total_credits, used_credits, updated_at
from credit_accounts
where user_id = $1::text;
`

const QSelectCreditTransactions = `--sql 56b23679-eda6-485d-86cf-47cb826aa026
select id::text, user_id, amount, resource_type, metadata, created_at
from credit_transactions
where user_id = $1::text
order by created_at desc
limit $2::int;
`

const QSumCreditTransactions = `--sql ec386ddf-09af-4cf4-a1b1-49a49b66babf
select coalesce(sum(amount), 0)::int
from credit_transactions
where user_id = $1::text;
`
